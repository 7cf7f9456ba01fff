package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/revdel/internal/visibility"
)

// actorFlags describe the user a command acts as.
type actorFlags struct {
	Name           string
	ID             int64
	CanViewDeleted bool
	CanSuppress    bool
}

func (a *actorFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.Name, "actor", "", "name of the acting user (required)")
	cmd.Flags().Int64Var(&a.ID, "actor-id", 0, "user id of the acting user")
	cmd.Flags().BoolVar(&a.CanViewDeleted, "can-view-deleted", false, "actor may see hidden fields")
	cmd.Flags().BoolVar(&a.CanSuppress, "can-suppress", false, "actor may see and change restricted records")
	_ = cmd.MarkFlagRequired("actor")
}

func (a *actorFlags) actor() visibility.Actor {
	return visibility.Actor{
		ID:             a.ID,
		Name:           a.Name,
		CanViewDeleted: a.CanViewDeleted || a.CanSuppress,
		CanSuppress:    a.CanSuppress,
	}
}
