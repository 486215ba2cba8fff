package main

import (
	"flag"

	"taskhub/internal/apiserver"
)

func main() {
	confPath := flag.String("config", "configs/taskhub.env", "path to an optional .env file")
	flag.Parse()

	apiserver.InitAndServe(*confPath)
}
