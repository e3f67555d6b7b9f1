package dto

import "time"

// Release 一次构建产物的归档
type Release struct {
	// ID 发布标识，时间戳目录名
	ID string
	// Path 发布目录完整路径
	Path string
	// CreatedAt 从 ID 解析出的创建时间
	CreatedAt time.Time
	// Current 是否为当前激活发布
	Current bool
}
