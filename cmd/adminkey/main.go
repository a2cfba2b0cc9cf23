// Command adminkey prints the ADMIN_KEY_HASH value for a moderator key.
//
//	go run ./cmd/adminkey <key>
//	echo -n <key> | go run ./cmd/adminkey
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/AnshRaj112/tandem-backend/pkg/utils"
)

func main() {
	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		key = strings.TrimSpace(line)
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "usage: adminkey <key>")
		os.Exit(2)
	}

	hash, err := utils.HashSecret(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
