package commands

import (
	"crypto/rand"
	"math/big"
)

const passwordCharset = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateRandomPassword 生成指定长度的随机密码（去除易混淆字符）
func generateRandomPassword(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return ""
		}
		b[i] = passwordCharset[n.Int64()]
	}
	return string(b)
}
