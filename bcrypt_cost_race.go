//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// passwordHashCost drops to the minimum under -race
func passwordHashCost() int {
	return bcrypt.MinCost
}
