package config

//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

// AppEnv is the application environment
// ENUM(development, production)
type AppEnv string
