package fah

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidStringBool = errors.New("fah: invalid string bool")

// StringBool is a boolean the daemon reports as the string "true" or
// "false". Bare JSON booleans are accepted too, and an empty value (the
// daemon's None) reads as false.
type StringBool bool

func (b *StringBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	switch string(data) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStringBool, data)
	}
	return nil
}

func (b StringBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// Options is the full daemon option set as returned by "options -a".
// Unknown keys are ignored and missing keys keep their zero value.
type Options struct {
	Allow                  string     `json:"allow"`
	CaptureDirectory       string     `json:"capture-directory"`
	CaptureOnError         StringBool `json:"capture-on-error"`
	CapturePackets         StringBool `json:"capture-packets"`
	CaptureRequests        StringBool `json:"capture-requests"`
	CaptureResponses       StringBool `json:"capture-responses"`
	CaptureSockets         StringBool `json:"capture-sockets"`
	Cause                  string     `json:"cause"`
	CertificateFile        string     `json:"certificate-file"`
	Checkpoint             string     `json:"checkpoint"`
	Child                  StringBool `json:"child"`
	ClientSubtype          string     `json:"client-subtype"`
	ClientThreads          string     `json:"client-threads"`
	ClientType             string     `json:"client-type"`
	CommandAddress         string     `json:"command-address"`
	CommandAllowNoPass     string     `json:"command-allow-no-pass"`
	Deny                   string     `json:"deny"`
	CommandDenyNoPass      string     `json:"command-deny-no-pass"`
	CommandEnable          StringBool `json:"command-enable"`
	CommandPort            string     `json:"command-port"`
	ConfigRotate           StringBool `json:"config-rotate"`
	ConfigRotateDir        string     `json:"config-rotate-dir"`
	ConfigRotateMax        string     `json:"config-rotate-max"`
	ConnectionTimeout      string     `json:"connection-timeout"`
	CorePriority           string     `json:"core-priority"`
	CPUSpecies             string     `json:"cpu-species"`
	CPUType                string     `json:"cpu-type"`
	CPUUsage               string     `json:"cpu-usage"`
	Cpus                   string     `json:"cpus"`
	CRLFile                string     `json:"crl-file"`
	CUDAIndex              string     `json:"cuda-index"`
	CycleRate              string     `json:"cycle-rate"`
	Cycles                 string     `json:"cycles"`
	Daemon                 StringBool `json:"daemon"`
	DebugSockets           StringBool `json:"debug-sockets"`
	DisableSleepWhenActive StringBool `json:"disable-sleep-when-active"`
	DisableViz             StringBool `json:"disable-viz"`
	DumpAfterDeadline      StringBool `json:"dump-after-deadline"`
	ExceptionLocations     StringBool `json:"exception-locations"`
	ExitWhenDone           StringBool `json:"exit-when-done"`
	ExtraCoreArgs          string     `json:"extra-core-args"`
	FoldAnon               string     `json:"fold-anon"`
	GPU                    string     `json:"gpu"`
	GPUIndex               string     `json:"gpu-index"`
	GPUUsage               string     `json:"gpu-usage"`
	GuiEnabled             string     `json:"gui-enabled"`
	HTTPAddresses          string     `json:"http-addresses"`
	HTTPSAddresses         string     `json:"https-addresses"`
	Idle                   StringBool `json:"idle"`
	Log                    string     `json:"log"`
	LogColor               StringBool `json:"log-color"`
	LogCRLF                StringBool `json:"log-crlf"`
	LogDate                StringBool `json:"log-date"`
	LogDatePeriodically    string     `json:"log-date-periodically"`
	LogDomain              StringBool `json:"log-domain"`
	LogDomainLevels        string     `json:"log-domain-levels"`
	LogHeader              StringBool `json:"log-header"`
	LogLevel               StringBool `json:"log-level"`
	LogNoInfoHeader        StringBool `json:"log-no-info-header"`
	LogRedirect            StringBool `json:"log-redirect"`
	LogRotate              StringBool `json:"log-rotate"`
	LogRotateDir           string     `json:"log-rotate-dir"`
	LogRotateMax           string     `json:"log-rotate-max"`
	LogShortLevel          StringBool `json:"log-short-level"`
	LogSimpleDomains       StringBool `json:"log-simple-domains"`
	LogThreadID            StringBool `json:"log-thread-id"`
	LogThreadPrefix        StringBool `json:"log-thread-prefix"`
	LogTime                StringBool `json:"log-time"`
	LogToScreen            StringBool `json:"log-to-screen"`
	LogTruncate            StringBool `json:"log-truncate"`
	MachineID              string     `json:"machine-id"`
	MaxConnectTime         string     `json:"max-connect-time"`
	MaxConnections         string     `json:"max-connections"`
	MaxPacketSize          string     `json:"max-packet-size"`
	MaxQueue               string     `json:"max-queue"`
	MaxRequestLength       string     `json:"max-request-length"`
	MaxShutdownWait        string     `json:"max-shutdown-wait"`
	MaxSlotErrors          string     `json:"max-slot-errors"`
	MaxUnitErrors          string     `json:"max-unit-errors"`
	MaxUnits               string     `json:"max-units"`
	Memory                 string     `json:"memory"`
	MinConnectTime         string     `json:"min-connect-time"`
	NextUnitPercentage     string     `json:"next-unit-percentage"`
	Priority               string     `json:"priority"`
	NoAssembly             StringBool `json:"no-assembly"`
	OpenWebControl         StringBool `json:"open-web-control"`
	OpenCLIndex            string     `json:"opencl-index"`
	OSSpecies              string     `json:"os-species"`
	OSType                 string     `json:"os-type"`
	Passkey                string     `json:"passkey"`
	Password               string     `json:"password"`
	PauseOnBattery         StringBool `json:"pause-on-battery"`
	PauseOnStart           StringBool `json:"pause-on-start"`
	Paused                 StringBool `json:"paused"`
	PID                    StringBool `json:"pid"`
	PIDFile                string     `json:"pid-file"`
	Power                  string     `json:"power"`
	PrivateKeyFile         string     `json:"private-key-file"`
	ProjectKey             string     `json:"project-key"`
	Proxy                  string     `json:"proxy"`
	ProxyEnable            StringBool `json:"proxy-enable"`
	ProxyPass              string     `json:"proxy-pass"`
	ProxyUser              string     `json:"proxy-user"`
	Respawn                StringBool `json:"respawn"`
	Service                StringBool `json:"service"`
	ServiceDescription     string     `json:"service-description"`
	ServiceRestart         StringBool `json:"service-restart"`
	ServiceRestartDelay    string     `json:"service-restart-delay"`
	SessionCookie          string     `json:"session-cookie"`
	SessionLifetime        string     `json:"session-lifetime"`
	SessionTimeout         string     `json:"session-timeout"`
	SMP                    StringBool `json:"smp"`
	StackTraces            StringBool `json:"stack-traces"`
	StallDetectionEnabled  StringBool `json:"stall-detection-enabled"`
	StallPercent           string     `json:"stall-percent"`
	StallTimeout           string     `json:"stall-timeout"`
	Team                   string     `json:"team"`
	User                   string     `json:"user"`
	Verbosity              string     `json:"verbosity"`
	WebAllow               string     `json:"web-allow"`
	WebDeny                string     `json:"web-deny"`
	WebEnable              StringBool `json:"web-enable"`
}

// SlotInfo describes one folding slot.
type SlotInfo struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Description string            `json:"description"`
	Options     map[string]string `json:"options"`
	Reason      string            `json:"reason"`
	Idle        bool              `json:"idle"`
}

// SlotQueueInfo describes one work unit in the queue.
type SlotQueueInfo struct {
	ID             string   `json:"id"`
	State          string   `json:"state"`
	Error          string   `json:"error"`
	Project        int64    `json:"project"`
	Run            int64    `json:"run"`
	Clone          int64    `json:"clone"`
	Gen            int64    `json:"gen"`
	Core           string   `json:"core"`
	Unit           string   `json:"unit"`
	PercentDone    string   `json:"percentdone"`
	ETA            Duration `json:"eta"`
	PPD            string   `json:"ppd"`
	CreditEstimate string   `json:"creditestimate"`
	WaitingOn      string   `json:"waitingon"`
	NextAttempt    Duration `json:"nextattempt"`
	TimeRemaining  Duration `json:"timeremaining"`
	TotalFrames    int64    `json:"totalframes"`
	FramesDone     int64    `json:"framesdone"`
	Assigned       string   `json:"assigned"`
	Timeout        string   `json:"timeout"`
	Deadline       string   `json:"deadline"`
	WS             string   `json:"ws"`
	CS             string   `json:"cs"`
	Attempts       int64    `json:"attempts"`
	Slot           string   `json:"slot"`
	TPF            Duration `json:"tpf"`
	BaseCredit     string   `json:"basecredit"`
}

// Percent parses PercentDone, which carries a trailing '%'.
func (q SlotQueueInfo) Percent() (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(q.PercentDone), "%"), 64)
}

// PointsPerDay parses the unit's PPD estimate.
func (q SlotQueueInfo) PointsPerDay() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(q.PPD), 64)
}

// SimulationInfo describes the simulation running in a slot.
type SimulationInfo struct {
	User            string  `json:"user"`
	Team            string  `json:"team"`
	Project         int64   `json:"project"`
	Run             int64   `json:"run"`
	Clone           int64   `json:"clone"`
	Gen             int64   `json:"gen"`
	CoreType        int64   `json:"core_type"`
	Core            string  `json:"core"`
	TotalIterations int64   `json:"total_iterations"`
	IterationsDone  int64   `json:"iterations_done"`
	Energy          float64 `json:"energy"`
	Temperature     float64 `json:"temperature"`
	StartTime       string  `json:"start_time"`
	Timeout         int64   `json:"timeout"`
	Deadline        int64   `json:"deadline"`
	ETA             int64   `json:"eta"`
	Progress        float64 `json:"progress"`
	Slot            int64   `json:"slot"`
	News            string  `json:"news"`
}
