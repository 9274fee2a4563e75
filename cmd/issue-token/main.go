// Command issue-token signs an operator token with the server's JWT settings.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"groupflow/distributor/internal/config"
	jwtpkg "groupflow/distributor/pkg/jwt"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to config file")
	subject := pflag.StringP("user", "u", "", "operator id (random when empty)")
	admin := pflag.Bool("admin", false, "issue an admin token")
	ttl := pflag.Duration("ttl", 0, "token lifetime (defaults to jwt.access_token_ttl)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	userID := uuid.New()
	if *subject != "" {
		if userID, err = uuid.Parse(*subject); err != nil {
			log.Fatalf("invalid user id: %v", err)
		}
	}

	lifetime := cfg.JWT.AccessTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	role := jwtpkg.RoleOperator
	if *admin {
		role = jwtpkg.RoleAdmin
	}

	token, err := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, lifetime).GenerateAccessToken(userID, role)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "user=%s role=%s expires=%s\n", userID, role, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
