package main

//go:generate swag init -g cmd/bdpipeline/main.go -o docs

// @title           BD Pipeline API
// @version         0.1.0
// @description     Opportunity scoring, revenue forecasting and pipeline reporting.
// @host            localhost:8000
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
