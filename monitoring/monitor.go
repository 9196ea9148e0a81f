// Package monitoring turns a running table into a small web server so that
// the state of every actor and fork can be watched live.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/tablesim/table"
)

// Monitor exposes the live state of a table over HTTP.
type Monitor struct {
	table      *table.Table
	portNumber int
	autoOpen   bool
	listener   net.Listener
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithAutoOpen makes StartServer open the monitor page in a browser.
func (m *Monitor) WithAutoOpen() *Monitor {
	m.autoOpen = true
	return m
}

// RegisterTable registers the table to be monitored.
func (m *Monitor) RegisterTable(t *table.Table) {
	m.table = t
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/actors", m.listActors)
	r.HandleFunc("/api/actor/{id}", m.actorDetails)
	r.HandleFunc("/api/progress", m.progress)
	r.HandleFunc("/api/resource", m.listResources)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 0 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)
	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring table with %s\n", url)

	go func() {
		_ = http.Serve(listener, nil)
	}()

	if m.autoOpen {
		_ = browser.OpenURL(url)
	}
}

// StopServer stops the monitor server.
func (m *Monitor) StopServer() {
	if m.listener == nil {
		return
	}

	_ = m.listener.Close()
}

type actorStatus struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Completed int    `json:"completed"`
}

type forkStatus struct {
	ID     int `json:"id"`
	Holder int `json:"holder"`
}

type stateRsp struct {
	Table   string        `json:"table"`
	Policy  string        `json:"policy"`
	Elapsed float64       `json:"elapsed"`
	Actors  []actorStatus `json:"actors"`
	Forks   []forkStatus  `json:"forks"`
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	rsp := stateRsp{
		Table:   m.table.Name(),
		Policy:  m.table.Policy().String(),
		Elapsed: m.table.Now().Seconds(),
	}

	for _, p := range m.table.Actors() {
		rsp.Actors = append(rsp.Actors, actorStatus{
			ID:        p.ID(),
			Name:      p.Name(),
			State:     p.State().String(),
			Completed: p.Completed(),
		})
	}

	for _, f := range m.table.Forks() {
		rsp.Forks = append(rsp.Forks, forkStatus{
			ID:     f.ID(),
			Holder: f.Holder(),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listActors(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, p := range m.table.Actors() {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "%q", p.Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) actorDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 0 || id >= len(m.table.Actors()) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.table.Actors()[id])
	serializer.SetMaxDepth(1)
	err = serializer.Serialize(w)

	dieOnErr(err)
}

type progressRsp struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func (m *Monitor) progress(w http.ResponseWriter, _ *http.Request) {
	rsp := progressRsp{
		Total: len(m.table.Actors()) * m.table.CyclesPerActor(),
	}
	for _, p := range m.table.Actors() {
		rsp.Completed += p.Completed()
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func writeJSON(w http.ResponseWriter, rsp any) {
	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
