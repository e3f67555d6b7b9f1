package dto

// UpstreamServer 上游服务实例
type UpstreamServer struct {
	// Addr 地址，如 127.0.0.1:8080
	Addr string
	// Weight 权重，0 表示不输出 weight 参数
	Weight int
}

// TLSParams 站点 HTTPS 参数
type TLSParams struct {
	// Domain 证书域名
	Domain string
	// CertPath 证书文件路径
	CertPath string
	// KeyPath 私钥文件路径
	KeyPath string
}

// SiteSpec 站点配置参数
type SiteSpec struct {
	// AppName 应用名，用于 upstream 与限流 zone 命名
	AppName string
	// ListenPort 对外监听端口
	ListenPort int
	// Upstreams 上游实例列表，按声明顺序输出
	Upstreams []UpstreamServer
	// TLS 为空时仅生成 HTTP 站点
	TLS *TLSParams
	// WebrootDir ACME HTTP-01 验证文件目录
	WebrootDir string
	// RateLimitBurst 限流突发额度
	RateLimitBurst int
	// EnableGzip 是否开启 gzip
	EnableGzip bool
	// EnableSecurityHeaders 是否注入安全响应头
	EnableSecurityHeaders bool
}

// NginxVersion nginx 版本信息
type NginxVersion struct {
	// Raw nginx -v 原始输出
	Raw string
	// Version 解析出的版本号，如 1.24.0
	Version string
}
