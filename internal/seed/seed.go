package seed

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

// Credenciais de demonstração. Todas as contas de clínica usam DemoPassword.
const (
	SuperAdminEmail    = "admin@omnicare.local"
	SuperAdminPassword = "Admin123!"
	DemoPassword       = "ChangeMe123!"
)

type demoClinic struct {
	name   string
	prefix string
}

var demoClinics = []demoClinic{
	{"Clínica A", "clinica-a"},
	{"Clínica B", "clinica-b"},
}

// Run cria o super admin e duas clínicas de demonstração (admin, profissional, recepção,
// pacientes, uma consulta para amanhã e uma fatura em aberto). Não faz nada se já houver usuários.
func Run(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	var n int64
	if err := db.WithContext(ctx).Model(&repo.User{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("users", n).Msg("seed: database already has users, skipping")
		return nil
	}
	adminHash, err := auth.HashPassword(SuperAdminPassword)
	if err != nil {
		return err
	}
	demoHash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateUser(ctx, tx, &repo.User{
			Email: SuperAdminEmail, PasswordHash: adminHash, FullName: "Super Admin", Role: auth.RoleSuperAdmin,
		}); err != nil {
			return err
		}
		for _, dc := range demoClinics {
			if err := seedClinic(ctx, tx, dc, demoHash); err != nil {
				return err
			}
			log.Info().Str("clinic", dc.name).Msg("seed: clinic created")
		}
		return nil
	})
}

func strPtr(s string) *string { return &s }

func email(local, prefix string) string {
	return local + "@" + prefix + ".local"
}

func seedClinic(ctx context.Context, tx *gorm.DB, dc demoClinic, hash string) error {
	c := &repo.Clinic{Name: dc.name, Email: strPtr(email("contato", dc.prefix))}
	if err := repo.CreateClinic(ctx, tx, c); err != nil {
		return err
	}
	prof := &repo.Professional{
		ClinicID:      c.ID,
		FullName:      "Dra. " + strings.TrimPrefix(dc.name, "Clínica ") + " Souza",
		Specialty:     strPtr("Clínica Geral"),
		Council:       strPtr("CRM"),
		CouncilNumber: strPtr("12345-SC"),
		Email:         strPtr(email("prof", dc.prefix)),
	}
	if err := repo.CreateProfessional(ctx, tx, prof); err != nil {
		return err
	}
	users := []*repo.User{
		{ClinicID: &c.ID, Email: email("admin", dc.prefix), FullName: "Admin " + dc.name, Role: auth.RoleAdmin},
		{ClinicID: &c.ID, ProfessionalID: &prof.ID, Email: email("prof", dc.prefix), FullName: prof.FullName, Role: auth.RoleProfessional},
		{ClinicID: &c.ID, Email: email("recepcao", dc.prefix), FullName: "Recepção " + dc.name, Role: auth.RoleReceptionist},
	}
	for _, u := range users {
		u.PasswordHash = hash
		if err := repo.CreateUser(ctx, tx, u); err != nil {
			return err
		}
	}

	var first *repo.Patient
	for _, p := range []struct{ name, birth, local, phone string }{
		{"Maria Silva", "1985-03-15", "maria.silva", "47999990001"},
		{"João Santos", "1990-07-22", "joao.santos", "47999990002"},
		{"Ana Silva", "2018-01-10", "ana.silva", ""},
		{"Pedro Santos", "2020-05-03", "pedro.santos", ""},
	} {
		birth, _ := time.Parse("2006-01-02", p.birth)
		pat := &repo.Patient{ClinicID: c.ID, FullName: p.name, BirthDate: &birth, Email: strPtr(email(p.local, dc.prefix))}
		if p.phone != "" {
			pat.Phone = strPtr(p.phone)
		}
		if err := repo.CreatePatient(ctx, tx, pat); err != nil {
			return err
		}
		if first == nil {
			first = pat
		}
	}

	tomorrow := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1).Add(13 * time.Hour)
	if err := repo.CreateAppointment(ctx, tx, &repo.Appointment{
		ClinicID: c.ID, ProfessionalID: prof.ID, PatientID: first.ID,
		StartsAt: tomorrow, EndsAt: tomorrow.Add(30 * time.Minute),
	}); err != nil {
		return err
	}

	now := time.Now().UTC()
	due := time.Date(now.Year(), now.Month(), 10, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return repo.CreateInvoice(ctx, tx, &repo.Invoice{
		ClinicID:       c.ID,
		ReferenceMonth: now.Format("2006-01"),
		Description:    "Mensalidade OmniCare",
		AmountCents:    19990,
		DueDate:        due,
	})
}

// DemoID devolve o id da clínica de demonstração pelo nome (uuid.Nil se ausente).
func DemoID(ctx context.Context, db *gorm.DB, name string) uuid.UUID {
	var c repo.Clinic
	if err := db.WithContext(ctx).Where("name = ?", name).First(&c).Error; err != nil {
		return uuid.Nil
	}
	return c.ID
}
