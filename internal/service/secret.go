package service

import (
	"crypto/rand"
	"math/big"
)

// 签到码取值范围 [secretMin, secretMax]
const (
	secretMin = 1000
	secretMax = 9999
)

// SecretGenerator 生成考勤窗口签到码
type SecretGenerator func() (int, error)

// randomSecret 在 [1000, 9999] 内均匀随机生成签到码
func randomSecret() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(secretMax-secretMin+1))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + secretMin, nil
}
