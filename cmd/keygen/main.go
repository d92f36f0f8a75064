// Package main is a utility for minting license key strings offline. It
// prints codes in the same AAAA-BBBB-CCCC-DDDD format the admin API
// generates, for manually seeding the license_keys table without running the
// full server. The count is the single optional argument (default 1).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/samsonhsy/dot-backend/internal/services"
)

func main() {
	count := 1
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n < 1 {
			fmt.Fprintf(os.Stderr, "usage: %s [count]\n", os.Args[0])
			os.Exit(1)
		}
		count = n
	}

	for i := 0; i < count; i++ {
		key, err := services.NewKeyString()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
	}
}
