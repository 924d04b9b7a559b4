package main

//go:generate swag init -g cmd/kuberafi/main.go -o docs

// @title           Kuberafi Settlement API
// @version         0.1.0
// @description     Order settlement, operator cash ledger and commission workflow.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
