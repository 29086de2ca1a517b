package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/pocketbase/pocketbase/tools/security"
)

const recordIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func GenerateCode(n int) (string, error) {
	// Make a slice of nBytes random bytes.
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateRecordID returns an id in the same shape pocketbase uses for its
// own records, so rows written through dbx stay editable from the dashboard.
func GenerateRecordID() string {
	return security.RandomStringWithAlphabet(15, recordIDAlphabet)
}

// GenerateReceipt builds a gateway receipt such as "bkg_9F2C01AB".
func GenerateReceipt(prefix string) (string, error) {
	code, err := GenerateCode(4)
	if err != nil {
		return "", err
	}
	return prefix + "_" + code, nil
}
