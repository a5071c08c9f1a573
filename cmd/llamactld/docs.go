package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           llamactld API
// @version         1.0
// @description     HTTP API for llama-server instance lifecycle and request routing.
//
// @contact.name   llamactld maintainers
// @contact.url    https://github.com/your-org/llamactld
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
