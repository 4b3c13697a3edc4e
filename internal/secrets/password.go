package secrets

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service groups this app's secrets in the OS keychain.
	KeyringService = "joblens"

	dbAccount = "joblens:db"
)

// GetDBPassword reads the database password from the OS keyring.
func GetDBPassword() (string, error) {
	pw, err := keyring.Get(KeyringService, dbAccount)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pw) == "" {
		return "", errors.New("database password in keyring is empty")
	}
	return pw, nil
}

func SetDBPassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, dbAccount, password)
}

func DeleteDBPassword() error {
	return keyring.Delete(KeyringService, dbAccount)
}

// ExpandDSN substitutes a literal ${password} placeholder in the DSN with
// the keyring value, so the yaml never stores the credential.
func ExpandDSN(dsn string) (string, error) {
	const placeholder = "${password}"
	if !strings.Contains(dsn, placeholder) {
		return dsn, nil
	}
	pw, err := GetDBPassword()
	if err != nil {
		return "", errors.New("dsn references ${password} but keyring lookup failed: " + err.Error())
	}
	return strings.ReplaceAll(dsn, placeholder, pw), nil
}
