// Package banner prints the startup banner and per-listener status lines
// using the same ASCII-art-plus-fatih/color idiom as the rest of this
// codebase, restyled for a dual-protocol forwarding proxy instead of a
// single SOCKS5 client/server pair.
package banner

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

func Print(startTime time.Time) {
	art := `
███████╗███████╗██████╗ ██████╗ ██╗   ██╗
██╔════╝██╔════╝██╔══██╗██╔══██╗╚██╗ ██╔╝
█████╗  █████╗  ██████╔╝██████╔╝ ╚████╔╝
██╔══╝  ██╔══╝  ██╔══██╗██╔══██╗  ╚██╔╝
██║     ███████╗██║  ██║██║  ██║   ██║
╚═╝     ╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`
	c := color.New(color.FgCyan, color.Bold)
	c.Println(art)

	fmt.Println("   ferry :: multi-protocol forwarding proxy")
	fmt.Printf("   Start Time: %s\n", startTime.Format(time.RFC1123))
	fmt.Println(strings.Repeat("-", 50))
}

// PrintInbound reports one configured inbound endpoint's name, protocol,
// and address. It only prints; it does not check that the endpoint's
// listener is bound.
func PrintInbound(name, protocol, addr string) {
	color.Green("✓ inbound %s ready", name)
	fmt.Printf("   • Protocol:  %s\n", protocol)
	fmt.Printf("   • Listening: %s\n", addr)
	fmt.Println(strings.Repeat("-", 50))
}
