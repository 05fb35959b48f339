package sqlitesource

import (
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the tsweb debug index on mux with a live SQL
// console over the dataset database and a dataset listing.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.db, &tailsql.DBOptions{
		Label: "Dataset DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("datasets", "Stored datasets and frame counts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		infos, err := s.Datasets(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to list datasets: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, d := range infos {
			fmt.Fprintf(w, "%s\t%d frames\t%s\n", d.ID, d.Frames, d.Name)
		}
	}))
	return nil
}
