package banner

import (
	"faultcheck/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    ____            ____        __              __
   / __/___ ___  __/ / /_____  / /_  ___  _____/ /__
  / /_/ __ '/ / / / / __/ ___/ __ \/ _ \/ ___/ //_/
 / __/ /_/ / /_/ / / /_/ /__/ / / /  __/ /__/ ,<
/_/  \__,_/\__,_/_/\__/\___/_/ /_/\___/\___/_/|_|  `

	tagline := renderer.NewStyle().Foreground(styles.ColorSubtle).
		Render("  verify bandwidth, latency and loss faults through a proxy")

	return "\n" + style.Render(ascii) + "\n" + tagline + "\n"
}
