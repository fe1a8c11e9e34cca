// Command devtoken signs a bearer token for local calls against the API.
package main

import (
	"log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
