package config

import (
	"fmt"

	"fabu/utils"
)

// Validate 校验配置合法性，返回中文错误信息
func (c *Config) Validate() error {
	if errMsg, err := utils.Validate(c); err != nil {
		return fmt.Errorf("配置校验失败: %s", errMsg)
	}

	if c.App.PortBlue == c.App.PortGreen {
		return fmt.Errorf("配置校验失败: 蓝绿实例端口不能相同")
	}
	if c.Canary.Percent > 0 && c.Rollback {
		return fmt.Errorf("配置校验失败: 回滚模式下不允许设置灰度百分比")
	}

	return nil
}
