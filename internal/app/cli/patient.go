package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/protocol-rag/internal/core/patient"
)

// PatientAction は患者記録のスタブを表示するコマンドのアクション
func PatientAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("患者IDを指定してください")
	}

	fmt.Fprintln(output(cmd), patient.FetchPatientData(id))
	return nil
}
