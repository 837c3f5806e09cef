package utils

import "golang.org/x/crypto/bcrypt"

// Short-lived one-time codes are hashed at a lower cost than passwords; the
// attempt limit bounds guessing instead.
const codeHashCost = bcrypt.MinCost + 2

// HashPassword returns a bcrypt hash of the provided password.
func HashPassword(password string) (string, error) {
	return hash(password, bcrypt.DefaultCost)
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// HashCode hashes a one-time verification code.
func HashCode(code string) (string, error) {
	return hash(code, codeHashCost)
}

// CheckCode reports whether code matches a hash made by HashCode.
func CheckCode(hashedCode, code string) bool {
	if code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedCode), []byte(code)) == nil
}

func hash(secret string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(bytes), err
}
