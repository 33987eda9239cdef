package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"rota-engine/internal/config"
	"rota-engine/internal/repository"
	"rota-engine/internal/service"
	"rota-engine/pkg/datemath"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	generate := flag.Bool("generate", false, "materialize the rota for -from..-to")
	horizon := flag.Bool("horizon", false, "materialize the rolling horizon from today")
	schedule := flag.Bool("schedule", false, "print the composed schedule for -from..-to as JSON lines")
	bulkAssign := flag.Bool("bulk-assign", false, "auto-assign pending coverage requests in -from..-to")
	fromStr := flag.String("from", "", "range start, YYYY-MM-DD")
	toStr := flag.String("to", "", "range end, YYYY-MM-DD")
	flag.Parse()

	logrus.Info("Initializing config...")
	cfg := config.GetEngineConfig()
	logrus.Info("Config initialized...")

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		logrus.Fatal("Failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatal("Failed to get database instance:", err)
	}

	if _, err = sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logrus.Infof("Warning: Failed to enable foreign keys: %v", err)
	}

	clinicianRepo, err := repository.NewGormClinicianRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create clinician repository")
	}
	dutyRepo, err := repository.NewGormDutyRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create duty repository")
	}
	jobPlanRepo, err := repository.NewGormJobPlanRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create job plan repository")
	}
	configRepo, err := repository.NewGormOnCallConfigRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create on-call config repository")
	}
	slotRepo, err := repository.NewGormOnCallSlotRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create on-call slot repository")
	}
	patternRepo, err := repository.NewGormOnCallPatternRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create on-call pattern repository")
	}
	assignmentRepo, err := repository.NewGormSlotAssignmentRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create slot assignment repository")
	}
	leaveRepo, err := repository.NewGormLeaveRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create leave repository")
	}
	rotaRepo, err := repository.NewGormRotaEntryRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create rota entry repository")
	}
	requestRepo, err := repository.NewGormCoverageRequestRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create coverage request repository")
	}
	auditRepo, err := repository.NewGormAuditRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create audit repository")
	}

	rotationService := service.NewRotationService(
		configRepo, slotRepo, patternRepo, assignmentRepo, clinicianRepo, auditRepo)
	restDayService := service.NewRestDayService(rotationService)
	coverageService := service.NewCoverageService(
		clinicianRepo, leaveRepo, rotaRepo, jobPlanRepo, dutyRepo, requestRepo, auditRepo)
	composerService := service.NewComposerService(
		clinicianRepo, leaveRepo, rotaRepo, jobPlanRepo, dutyRepo, requestRepo,
		rotationService, restDayService)

	params := service.DefaultScoringParams
	params.RawMin = cfg.ScoreRawMin
	params.RawMax = cfg.ScoreRawMax
	assignerService := service.NewAssignerService(
		clinicianRepo, leaveRepo, rotaRepo, requestRepo, dutyRepo,
		rotationService, restDayService, auditRepo, params)

	materializerService := service.NewMaterializerService(
		clinicianRepo, leaveRepo, rotaRepo, jobPlanRepo,
		rotationService, restDayService, coverageService, cfg.HorizonMonths)

	exitCode := 0
	switch {
	case *horizon:
		if err := materializerService.GenerateRollingHorizon(); err != nil {
			logrus.WithError(err).Error("Rolling horizon generation failed")
			exitCode = 1
		}
	case *generate:
		from, to, err := parseRange(*fromStr, *toStr)
		if err != nil {
			logrus.WithError(err).Error("Invalid range")
			exitCode = 1
			break
		}
		if err := materializerService.GenerateRota(from, to); err != nil {
			logrus.WithError(err).Error("Rota generation failed")
			exitCode = 1
		}
	case *schedule:
		from, to, err := parseRange(*fromStr, *toStr)
		if err != nil {
			logrus.WithError(err).Error("Invalid range")
			exitCode = 1
			break
		}
		entries, err := composerService.ComputeSchedule(from, to)
		if err != nil {
			logrus.WithError(err).Error("Schedule computation failed")
			exitCode = 1
			break
		}
		encoder := json.NewEncoder(os.Stdout)
		for _, entry := range entries {
			if err := encoder.Encode(entry); err != nil {
				logrus.WithError(err).Error("Failed to encode entry")
				exitCode = 1
				break
			}
		}
	case *bulkAssign:
		from, to, err := parseRange(*fromStr, *toStr)
		if err != nil {
			logrus.WithError(err).Error("Invalid range")
			exitCode = 1
			break
		}
		assigned, skipped, err := assignerService.BulkAutoAssign(from, to)
		if err != nil {
			logrus.WithError(err).Error("Bulk auto-assign failed")
			exitCode = 1
			break
		}
		logrus.Infof("Assigned %d requests, skipped %d", assigned, skipped)
	default:
		flag.Usage()
		exitCode = 2
	}

	if err := sqlDB.Close(); err != nil {
		logrus.Infof("Error closing database: %v", err)
	}

	os.Exit(exitCode)
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	f, err := datemath.Parse(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := datemath.Parse(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return f, t, nil
}
