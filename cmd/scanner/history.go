package main

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"barcodescanner/internal/config"
	"barcodescanner/internal/dto"
	"barcodescanner/internal/repository/sqlite"
)

var (
	historySession string
	historyFormat  string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print stored scans, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := sqlite.NewScanRepository(db)
		filter := &dto.ScanFilters{SessionID: historySession, Format: historyFormat, Limit: historyLimit}
		scans, err := repo.GetAll(filter)
		if err != nil {
			return err
		}
		total, err := repo.GetTotalCount(filter)
		if err != nil {
			return err
		}

		if len(scans) == 0 {
			pterm.Info.Println("No scans stored")
			return nil
		}

		data := pterm.TableData{{"Detected", "Format", "Value", "Count", "Session"}}
		for _, s := range scans {
			session := s.SessionID
			if len(session) > 8 {
				session = session[:8]
			}
			data = append(data, []string{
				s.DetectedAt.Local().Format("2006-01-02 15:04:05"),
				s.Format,
				s.Value,
				strconv.Itoa(s.DetectionCount),
				session,
			})
		}
		pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
		pterm.Info.Printf("Showing %d of %d scan(s)\n", len(scans), total)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySession, "session", "", "only scans of this session")
	historyCmd.Flags().StringVar(&historyFormat, "format", "", "only scans of this format (e.g. QR_CODE)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum rows")
}
