package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/hongminglow/all-in-dash/cmd/dash/cmd"
)

func main() {
	loadLocalEnv()
	cmd.Execute()
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
