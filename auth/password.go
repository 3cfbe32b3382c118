package auth

import "golang.org/x/crypto/bcrypt"

const passwordCost = 12

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
