package bootstrap

import (
	"errors"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SeedService struct {
	db *gorm.DB
}

func (s *SeedService) SeedAll() error {
	return s.seedClinicInfo()
}

// seedClinicInfo installs the default answer topics. Existing rows keep
// their answers so staff edits survive a restart.
func (s *SeedService) seedClinicInfo() error {
	defaults := []models.ClinicInfo{
		{
			Topic:    "hours",
			Keywords: "hours,open,close,opening,closing,when are you open",
			Answer:   "We are open Monday through Friday from 8 AM to 6 PM, and Saturday from 9 AM to 1 PM. We are closed on Sundays.",
			Enabled:  true,
		},
		{
			Topic:    "location",
			Keywords: "location,address,where,directions,find you",
			Answer:   "We are located at 450 Maple Avenue, Suite 200, next to the community pharmacy.",
			Enabled:  true,
		},
		{
			Topic:    "insurance",
			Keywords: "insurance,coverage,accept,plan,copay",
			Answer:   "We accept most major insurance plans. Please bring your insurance card to your visit, and our front desk can verify your coverage.",
			Enabled:  true,
		},
		{
			Topic:    "parking",
			Keywords: "parking,park,garage,lot",
			Answer:   "Free patient parking is available in the lot behind the building, with accessible spaces near the main entrance.",
			Enabled:  true,
		},
		{
			Topic:    "services",
			Keywords: "services,offer,provide,what do you do",
			Answer:   "We offer primary care visits, annual checkups, vaccinations, lab work, and prescription management.",
			Enabled:  true,
		},
	}

	seeded := 0
	for _, entry := range defaults {
		_, err := models.GetClinicInfoByTopic(s.db, entry.Topic)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := models.CreateClinicInfo(s.db, &entry); err != nil {
			return err
		}
		seeded++
	}
	if seeded > 0 {
		logger.Info("clinic answer topics seeded", zap.Int("count", seeded))
	}
	return nil
}
