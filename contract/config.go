package contract

import (
	"context"
	"fmt"

	"okinoko_moloch/contract/dao"
)

// config loads the governance config. An instance that was never initialized
// has none and every config dependent call fails.
func (c *call) config() (*dao.Config, error) {
	ptr := c.kv.get(configKey())
	if ptr == nil {
		if c.kv.err != nil {
			return nil, c.kv.err
		}
		return nil, fmt.Errorf("%w: dao not initialized", ErrInvalidState)
	}
	cfg, err := dao.DecodeConfig([]byte(*ptr))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *call) saveConfig(cfg *dao.Config) {
	c.kv.set(configKey(), string(dao.EncodeConfig(cfg)))
}

// Config returns the live governance configuration.
func (d *DAO) Config(ctx context.Context) (*dao.Config, error) {
	var out *dao.Config
	err := d.view(ctx, func(c *call) error {
		var err error
		out, err = c.config()
		return err
	})
	return out, err
}
