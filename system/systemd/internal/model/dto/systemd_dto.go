package dto

// ServiceUnitParams systemd service unit 参数（结构化 + 扩展行）
type ServiceUnitParams struct {
	// [Unit] 段
	Description   string
	Documentation string
	After         []string
	Wants         []string
	Requires      []string

	// [Service] 段
	Type             string
	ExecStart        string
	ExecStartPre     []string
	ExecStartPost    []string
	ExecStop         string
	ExecReload       string
	WorkingDirectory string
	User             string
	Group            string
	Environment      []string
	EnvironmentFile  string
	Restart          string
	RestartSec       int
	TimeoutStartSec  int
	TimeoutStopSec   int
	LimitNOFILE      int
	LimitNPROC       int

	// [Install] 段
	WantedBy   []string
	RequiredBy []string
	Alias      []string

	// 扩展行（逐行追加到对应段落末尾）
	ExtraUnitLines    []string
	ExtraServiceLines []string
	ExtraInstallLines []string
}

// ServiceStatus systemd 服务状态
type ServiceStatus struct {
	Name            string
	Description     string
	LoadState       string
	ActiveState     string
	SubState        string
	UnitFileState   string
	MainPID         int
	ExecMainStartAt string
	MemoryCurrent   uint64
	Result          string
}
