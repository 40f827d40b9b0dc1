/**
 * @description
 * Prints the bcrypt hash of a password so that users can be seeded directly in the
 * users table.
 *
 * Usage:
 *   go run ./cmd/hashpassword <password>
 *   echo -n <password> | go run ./cmd/hashpassword
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt (through internal/app)
 */

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/upbank/core-service/internal/app"
)

func main() {
	var password string
	switch len(os.Args) {
	case 2:
		password = os.Args[1]
	case 1:
		password = readPassword()
	default:
		fmt.Println("Usage: go run ./cmd/hashpassword <password>")
		fmt.Println("       echo -n <password> | go run ./cmd/hashpassword")
		os.Exit(1)
	}

	if password == "" {
		log.Fatal("password must not be empty")
	}

	hash, err := app.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(hash)
}

// readPassword reads the first line of stdin.
func readPassword() string {
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			log.Fatalf("Failed to read stdin: %v", err)
		}
		return ""
	}
	return strings.TrimRight(scanner.Text(), "\r\n")
}
