// Kicks a running server's refresh endpoint. Handy for cron on hosts
// where the server process owns the data directory.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

func main() {
	var (
		base   = flag.String("url", "http://localhost:8080", "server base URL")
		tenant = flag.String("tenant", "", "tenant slug (default: all)")
		force  = flag.Bool("force", false, "refresh even when fresh")
	)
	flag.Parse()

	secret := strings.TrimSpace(os.Getenv("REFRESH_SECRET"))
	if secret == "" {
		fmt.Println("missing REFRESH_SECRET environment variable")
		os.Exit(1)
	}

	url := *base + "/api/v1/refresh?force=" + fmt.Sprint(*force)
	if *tenant != "" {
		url += "&tenant=" + *tenant
	}

	req, err := http.NewRequest("POST", url, nil)
	if err != nil {
		fmt.Printf("error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Refresh-Secret", secret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("response status: %s\n%s\n", resp.Status, body)
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}
