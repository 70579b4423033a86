package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.bug.st/serial"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type ScanCommand struct{}

func (c *ScanCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("COBOT Port Scanner"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}

	var candidates []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		candidates = append(candidates, port)
	}

	if len(candidates) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the arm is connected and powered on.")
		return nil
	}

	fmt.Printf("Found %d port(s):\n\n", len(candidates))
	for _, port := range candidates {
		marker := "  "
		if isLikelyArm(port) {
			marker = successStyle.Render("▸ ")
		}
		fmt.Printf("%s%s\n", marker, port)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("▸ marks USB serial adapters where the arm usually shows up."))
	fmt.Println("Set the port in cobot.yaml or pass it with --port.")
	return nil
}

func isLikelyArm(port string) bool {
	for _, prefix := range []string{"/dev/ttyUSB", "/dev/ttyACM", "/dev/cu.usbserial", "/dev/cu.usbmodem", "COM"} {
		if strings.HasPrefix(port, prefix) {
			return true
		}
	}
	return false
}
