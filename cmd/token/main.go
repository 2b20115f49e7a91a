// Command token prints a signed actor token for the coverage API.
//
//	JWT_SECRET=... go run ./cmd/token -actor scheduler-amy -ttl 12h
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"shift-coverage/internal/auth"
	"shift-coverage/internal/config"
)

func main() {
	actor := flag.String("actor", "", "user id recorded on manual offering changes")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	issuer, err := auth.NewIssuer(cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	token, err := issuer.CreateToken(*actor)
	if err != nil {
		log.Fatalf("create token: %v", err)
	}
	fmt.Println(token)
}
