package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/illarion/credvault/internal/config"
	"github.com/illarion/credvault/internal/core"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#ff5f5f"))
)

const hiddenPassword = "********"

// List shows every stored credential, sorted by service
func List(cfg config.Config, showPasswords bool) {
	vault := unlockVault(cfg)
	defer vault.Close()

	creds, err := vault.List()
	if err != nil {
		HandleError(err)
	}

	if len(creds) == 0 {
		fmt.Println("No credentials stored")
		fmt.Println("Use 'credvault add' or 'credvault import' to add some")
		return
	}

	fmt.Println(credentialTable(creds, showPasswords))
	fmt.Printf("%d credential(s)\n", len(creds))
}

// credentialTable renders creds; failed rows are highlighted
func credentialTable(creds []core.Credential, showPasswords bool) *table.Table {
	headers := []string{"ID", "Service", "Username", "Password", "Created"}

	failed := make(map[int]bool)
	rows := make([][]string, 0, len(creds))
	for i, c := range creds {
		password := hiddenPassword
		if c.Password == core.DecryptionErrorMarker {
			failed[i] = true
			password = c.Password
		} else if showPasswords {
			password = c.Password
		}
		rows = append(rows, []string{
			strconv.FormatUint(c.ID, 10),
			c.Service,
			c.Username,
			password,
			c.CreatedAt.Local().Format(time.DateTime),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case failed[row]:
				return errorStyle
			default:
				return cellStyle
			}
		})
}
