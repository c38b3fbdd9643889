package banner

import (
	"fmt"

	"inboxd/pkg/config"
)

const banner = `
██╗███╗   ██╗██████╗  ██████╗ ██╗  ██╗██████╗
██║████╗  ██║██╔══██╗██╔═══██╗╚██╗██╔╝██╔══██╗
██║██╔██╗ ██║██████╔╝██║   ██║ ╚███╔╝ ██║  ██║
██║██║╚██╗██║██╔══██╗██║   ██║ ██╔██╗ ██║  ██║
██║██║ ╚████║██████╔╝╚██████╔╝██╔╝ ██╗██████╔╝
╚═╝╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═════╝
`

// Print shows the startup summary: listen addresses, storage path and
// the quick checks an operator cares about before production use.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("API:      %s\n", cfg.Addr())
	fmt.Printf("Webhooks: %s\n", cfg.WebhookAddr())
	fmt.Printf("DB Path:  %s\n", cfg.Storage.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/threads?platform=&search=&cursor= - List inbox threads")
	fmt.Println("GET  /v1/threads/{id}                      - Full conversation")
	fmt.Println("POST /v1/threads/{id}/reply                - Send an operator reply")
	fmt.Println("GET  /v1/threads/{id}/suggestions          - AI reply suggestions")
	fmt.Println("POST /webhooks/{platform}                  - Connector payload intake")

	fmt.Println("\n== Production? =================================================")
	if n := len(cfg.Security.APIKeys); n > 0 {
		fmt.Printf("- Business API keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Business API keys: MISSING (requests fall back to the default scope)")
	}
	if cfg.Suggest.Endpoint != "" {
		fmt.Println("- Suggestion service: configured")
	} else {
		fmt.Println("- Suggestion service: unconfigured (static suggestions)")
	}
	if cfg.Suggest.RedisAddr != "" {
		fmt.Println("- Suggestion cache: redis")
	} else {
		fmt.Println("- Suggestion cache: in-process")
	}
	if cfg.Archiver.Enabled {
		fmt.Printf("- Auto-archive: enabled (cron=%s)\n", cfg.Archiver.Cron)
	} else {
		fmt.Println("- Auto-archive: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
