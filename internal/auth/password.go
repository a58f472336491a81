package auth

import "golang.org/x/crypto/bcrypt"

// BcryptCost is fixed; digests embed the cost, so changing it only
// affects newly hashed passwords.
const BcryptCost = 10

// HashPassword hashes a plaintext password with a random salt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches the stored digest.
// Malformed digests verify as false rather than erroring.
func VerifyPassword(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
