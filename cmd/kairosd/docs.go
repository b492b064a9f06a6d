package main

// General API documentation for swaggo. Run `swag init -g cmd/kairosd/docs.go` to regenerate docs/.
//
// @title           KaiROS API
// @version         1.0
// @description     Loopback HTTP API for local model management and chat.
//
// @contact.name   kairos maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
