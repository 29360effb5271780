// Package wizard holds the interactive prompts of the CLI.
package wizard

import (
	"fmt"
	"io"
	"os"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

var auditTypeLabels = map[models.AuditType]string{
	models.AuditTypeRecordedLinePhrases: "Recorded-line disclosure after each human transfer",
	models.AuditTypeSectionBreakdown:    "Section breakdown (IVR, introduction, transfer, benefits)",
}

// IsTerminal reports whether stream (an input or output) is an interactive
// terminal.
func IsTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// AuditTypeOptions lists every audit type as a huh option, all preselected.
func AuditTypeOptions() []huh.Option[models.AuditType] {
	var opts []huh.Option[models.AuditType]
	for _, t := range models.AllAuditTypes() {
		label := auditTypeLabels[t]
		if label == "" {
			label = string(t)
		}
		opts = append(opts, huh.NewOption(label, t).Selected(true))
	}
	return opts
}

// SelectAuditTypes asks which audit types to run.
func SelectAuditTypes(in io.Reader, out io.Writer) ([]models.AuditType, error) {
	var selected []models.AuditType

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[models.AuditType]().
				Title("Audit types").
				Options(AuditTypeOptions()...).
				Validate(func(v []models.AuditType) error {
					if len(v) == 0 {
						return fmt.Errorf("select at least one audit type")
					}
					return nil
				}).
				Value(&selected),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if !IsTerminal(in) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("audit type selection failed: %w", err)
	}
	return selected, nil
}
