package config

import (
	"log"

	"classledger/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// SeedMasterData seeds the default school and a starter catalog so a fresh
// install is usable immediately. Idempotent: existing rows are left alone.
func SeedMasterData(db *gorm.DB) error {
	if err := seedSchool(db); err != nil {
		return err
	}
	return seedCatalog(db)
}

func seedSchool(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.School{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	school := &models.School{Name: "Default School", IsActive: true}
	if err := db.Create(school).Error; err != nil {
		return err
	}
	log.Printf("seeded default school (id=%d)", school.ID)
	return nil
}

func seedCatalog(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var school models.School
	if err := db.First(&school).Error; err != nil {
		return err
	}

	courses := []models.Course{
		{SchoolID: school.ID, Name: "General Class", Description: "Default course", IsActive: true},
	}
	if err := db.Create(&courses).Error; err != nil {
		return err
	}

	courseID := courses[0].ID
	packages := []models.CreditPackage{
		{
			SchoolID:      school.ID,
			CourseID:      &courseID,
			Name:          "Starter 10",
			Credits:       10,
			BonusCredits:  0,
			Price:         2000,
			ValidityType:  models.ValidityMonths,
			ValidityValue: 3,
			IsActive:      true,
		},
		{
			SchoolID:      school.ID,
			CourseID:      nil, // universal
			Name:          "Universal 20",
			Credits:       20,
			BonusCredits:  2,
			Price:         3600,
			ValidityType:  models.ValidityUnlimited,
			ValidityValue: 0,
			IsActive:      true,
		},
	}
	if err := db.Create(&packages).Error; err != nil {
		return err
	}

	log.Println("seeded starter catalog")
	return nil
}
