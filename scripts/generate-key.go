// Package main generates a random JWT signing secret for auth.jwt_secret. It
// prints the secret together with the matching environment variable line so
// it can be pasted straight into a deployment's secret store.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func main() {
	randomBytes := make([]byte, 48)
	if _, err := rand.Read(randomBytes); err != nil {
		log.Fatal(err)
	}
	secret := base64.RawURLEncoding.EncodeToString(randomBytes)

	fmt.Println("==========================================================")
	fmt.Println("JWT Secret Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nSecret: %s\n", secret)
	fmt.Printf("\nDTR_AUTH_JWT_SECRET=%s\n", secret)
	fmt.Println("\n==========================================================")
}
