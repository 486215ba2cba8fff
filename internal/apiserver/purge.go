package apiserver

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type revocationPurger interface {
	PurgeExpiredRevocations(ctx context.Context) (int64, error)
}

// schedulePurge registers the revocation cleanup on c when the store needs
// one. Stores that expire entries on their own are left alone.
func schedulePurge(c *cron.Cron, spec string, st any, log *logrus.Logger) error {
	p, ok := st.(revocationPurger)
	if !ok || spec == "" {
		return nil
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := p.PurgeExpiredRevocations(ctx)
		if err != nil {
			log.WithError(err).Error("failed to purge expired revocations")
			return
		}
		log.WithField("purged", n).Debug("expired revocations purged")
	})
	return err
}
