package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

var _ = Describe("UserService", func() {
	var (
		ctx      context.Context
		userRepo *memUserRepo
		svc      *service.UserService
		account  *domain.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		userRepo = newMemUserRepo()
		svc = service.NewUserService(userRepo, 4)
		account = userRepo.add(&domain.User{Name: "Plain User", Email: "plain@example.com", Role: domain.RoleUser, IsActive: true})
	})

	It("promotes a user to agent", func() {
		role := "agent"
		updated, err := svc.UpdateUser(ctx, account.ID, service.UserUpdateInput{Role: &role})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Role).To(Equal(domain.RoleAgent))
	})

	It("rejects an unknown role", func() {
		role := "superuser"
		_, err := svc.UpdateUser(ctx, account.ID, service.UserUpdateInput{Role: &role})
		Expect(errCode(err)).To(Equal("VALIDATION_FAILED"))
	})

	It("deactivates an account", func() {
		inactive := false
		updated, err := svc.UpdateUser(ctx, account.ID, service.UserUpdateInput{IsActive: &inactive})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.IsActive).To(BeFalse())
	})

	It("rejects an email already taken by another account", func() {
		userRepo.add(&domain.User{Name: "Other", Email: "taken@example.com", Role: domain.RoleUser, IsActive: true})
		email := "taken@example.com"
		_, err := svc.UpdateUser(ctx, account.ID, service.UserUpdateInput{Email: &email})
		Expect(errCode(err)).To(Equal("EMAIL_TAKEN"))
	})

	It("reports a missing account", func() {
		_, err := svc.GetUser(ctx, "missing-id")
		Expect(errCode(err)).To(Equal("NOT_FOUND"))
	})

	Describe("CreateUser", func() {
		It("provisions an agent account with a hashed credential", func() {
			created, err := svc.CreateUser(ctx, service.UserCreateInput{
				Name:     "New Agent",
				Email:    "new.agent@example.com",
				Password: "secret1",
				Role:     "agent",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.Role).To(Equal(domain.RoleAgent))
			Expect(created.IsActive).To(BeTrue())
			Expect(created.PasswordHash).NotTo(BeEmpty())
			Expect(created.PasswordHash).NotTo(Equal("secret1"))
		})

		It("defaults to the user role when none is given", func() {
			created, err := svc.CreateUser(ctx, service.UserCreateInput{
				Name:     "No Role",
				Email:    "norole@example.com",
				Password: "secret1",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.Role).To(Equal(domain.RoleUser))
		})

		It("rejects a duplicate email", func() {
			_, err := svc.CreateUser(ctx, service.UserCreateInput{
				Name:     "Duplicate",
				Email:    "plain@example.com",
				Password: "secret1",
			})
			Expect(errCode(err)).To(Equal("EMAIL_TAKEN"))
		})

		It("rejects an unknown role", func() {
			_, err := svc.CreateUser(ctx, service.UserCreateInput{
				Name:     "Bad Role",
				Email:    "badrole@example.com",
				Password: "secret1",
				Role:     "superuser",
			})
			Expect(errCode(err)).To(Equal("VALIDATION_FAILED"))
		})
	})

	Describe("DeleteUser", func() {
		It("removes an account", func() {
			admin := userRepo.add(&domain.User{Name: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true})
			Expect(svc.DeleteUser(ctx, admin.ID, account.ID)).To(Succeed())
			_, err := svc.GetUser(ctx, account.ID)
			Expect(errCode(err)).To(Equal("NOT_FOUND"))
		})

		It("refuses to delete the acting account", func() {
			admin := userRepo.add(&domain.User{Name: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true})
			err := svc.DeleteUser(ctx, admin.ID, admin.ID)
			Expect(errCode(err)).To(Equal("VALIDATION_FAILED"))
			_, getErr := svc.GetUser(ctx, admin.ID)
			Expect(getErr).NotTo(HaveOccurred())
		})

		It("reports a missing account", func() {
			err := svc.DeleteUser(ctx, "admin-id", "missing-id")
			Expect(errCode(err)).To(Equal("NOT_FOUND"))
		})
	})

	Describe("ListAgents", func() {
		It("returns only active staff", func() {
			userRepo.add(&domain.User{Name: "Amy Agent", Email: "amy@example.com", Role: domain.RoleAgent, IsActive: true})
			userRepo.add(&domain.User{Name: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true})
			userRepo.add(&domain.User{Name: "Gone Agent", Email: "gone@example.com", Role: domain.RoleAgent, IsActive: false})

			agents, err := svc.ListAgents(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(agents).To(HaveLen(2))
			for _, agent := range agents {
				Expect(agent.Role.IsStaff()).To(BeTrue())
				Expect(agent.IsActive).To(BeTrue())
			}
		})
	})
})
