// Command hashpw prints the argon2id hash of an operator password for
// use as auth.operator_password_hash in the server config.
package main

import (
	"fmt"
	"os"

	"github.com/optiqlab/scopecore/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <password>\n", os.Args[0])
		os.Exit(2)
	}

	hash, err := auth.NewPasswordHasher().HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
