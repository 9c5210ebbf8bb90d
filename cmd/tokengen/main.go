// Command tokengen mints a signed development token for a given user so a
// websocket or HTTP client can authenticate against a local relay.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/internal"
)

func main() {
	user := flag.String("user", "", "user identity to embed in the token")
	roles := flag.String("roles", "member", "comma separated role list")
	duration := flag.Duration("duration", 0, "token lifetime (defaults to AUTH_TOKEN_DURATION)")
	flag.Parse()

	if *user == "" {
		log.Fatal("Missing required flag: -user")
	}

	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	lifetime := *duration
	if lifetime == 0 {
		lifetime = config.AuthTokenDuration
	}
	if lifetime == 0 {
		lifetime = 24 * time.Hour
	}

	authenticator := auth.NewAuthenticator(config.JWTSecret)
	token, err := authenticator.GenerateToken(*user, strings.Split(*roles, ","), lifetime)
	if err != nil {
		log.Fatalf("Token generation failed: %v", err)
	}
	fmt.Println(token)
}
