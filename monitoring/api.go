package monitoring

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/progress/idgen"
	"github.com/sarchlab/progress/progress"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

func (s *Server) router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/events", s.serveEvents).
		Methods(http.MethodGet, http.MethodHead)

	if s.registry != nil {
		r.HandleFunc("/api/contexts", s.listContexts).
			Methods(http.MethodGet)
		r.HandleFunc("/api/contexts/{id:[0-9]+}", s.contextDetails).
			Methods(http.MethodGet)
	}

	r.HandleFunc("/api/resource", s.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", s.collectProfile).Methods(http.MethodGet)

	for path, res := range s.resources {
		r.Handle(path, s.serveResource(path, res)).
			Methods(http.MethodGet, http.MethodHead)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	if err != nil {
		s.logger.WithError(err).Debug("cannot write response")
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.WithError(err).Error("request failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) listContexts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.registry.Snapshot())
}

type contextDetail struct {
	ID        uint64
	Name      string
	Thread    string
	StartPerf int64
	StartCPU  int64
	EndPerf   int64
	EndCPU    int64
	Open      bool
	Children  []string
}

func detailOf(c *progress.Context) contextDetail {
	d := contextDetail{
		ID:        uint64(c.ID()),
		Name:      c.Name(),
		Thread:    string(c.Thread()),
		StartPerf: int64(c.StartPerf()),
		StartCPU:  int64(c.StartCPU()),
		Open:      !c.Closed(),
	}

	if end, ok := c.EndPerf(); ok {
		d.EndPerf = int64(end)
	}

	if end, ok := c.EndCPU(); ok {
		d.EndCPU = int64(end)
	}

	for _, child := range c.Children() {
		d.Children = append(d.Children, child.String())
	}

	return d
}

func (s *Server) contextDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	c, found := s.registry.Find(idgen.ID(id))
	if !found {
		http.Error(w, "Context not found", http.StatusNotFound)
		return
	}

	detail := detailOf(c)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&detail)
	serializer.SetMaxDepth(1)

	w.Header().Set("Content-Type", "application/json")

	err = serializer.Serialize(w)
	if err != nil {
		s.logger.WithError(err).Debug("cannot write context details")
	}
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (s *Server) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.internalError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		s.internalError(w, err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (s *Server) collectProfile(w http.ResponseWriter, r *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		s.internalError(w, err)
		return
	}

	timer := time.NewTimer(s.profileDuration)
	select {
	case <-timer.C:
	case <-r.Context().Done():
		timer.Stop()
	}

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, prof)
}
