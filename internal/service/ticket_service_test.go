package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func errCode(err error) string {
	return apperrors.ToDomainError(err).Code
}

// staleTicketRepo serves reads with an outdated status so the compare-and-swap
// write path can be exercised.
type staleTicketRepo struct {
	*memTicketRepo
	staleStatus domain.TicketStatus
}

func (r *staleTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := r.memTicketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ticket.Status = r.staleStatus
	return ticket, nil
}

var _ = Describe("TicketService", func() {
	var (
		ctx         context.Context
		userRepo    *memUserRepo
		ticketRepo  *memTicketRepo
		commentRepo *memCommentRepo
		attachRepo  *memAttachmentRepo
		historyRepo *memHistoryRepo
		dispatcher  events.Dispatcher
		captured    []events.Event
		svc         *service.TicketService

		owner *domain.User
		other *domain.User
		agent *domain.User
		admin *domain.User
	)

	newService := func(deps service.TicketDependencies) *service.TicketService {
		return service.NewTicketService(deps)
	}

	BeforeEach(func() {
		ctx = context.Background()
		userRepo = newMemUserRepo()
		commentRepo = newMemCommentRepo()
		attachRepo = newMemAttachmentRepo()
		historyRepo = newMemHistoryRepo()
		ticketRepo = newMemTicketRepo(commentRepo, attachRepo, historyRepo)

		captured = nil
		dispatcher = events.NewInMemoryDispatcher()
		capture := func(_ context.Context, event events.Event) error {
			captured = append(captured, event)
			return nil
		}
		for _, eventType := range []events.EventType{
			events.EventTicketCreated,
			events.EventTicketStatusChanged,
			events.EventTicketAssigned,
			events.EventTicketRated,
			events.EventCommentAdded,
		} {
			dispatcher.Subscribe(eventType, capture)
		}

		svc = newService(service.TicketDependencies{
			TicketRepo:     ticketRepo,
			CommentRepo:    commentRepo,
			AttachmentRepo: attachRepo,
			HistoryRepo:    historyRepo,
			UserRepo:       userRepo,
			Dispatcher:     dispatcher,
		})

		owner = userRepo.add(&domain.User{Name: "Olive Owner", Email: "olive@example.com", Role: domain.RoleUser, IsActive: true})
		other = userRepo.add(&domain.User{Name: "Oscar Other", Email: "oscar@example.com", Role: domain.RoleUser, IsActive: true})
		agent = userRepo.add(&domain.User{Name: "Amy Agent", Email: "amy@example.com", Role: domain.RoleAgent, IsActive: true})
		admin = userRepo.add(&domain.User{Name: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true})
	})

	createTicket := func(by *domain.User) *domain.Ticket {
		ticket, err := svc.CreateTicket(ctx, by, service.TicketCreateInput{
			Subject:     "Printer is broken",
			Description: "The office printer rejects every job since this morning.",
		})
		Expect(err).NotTo(HaveOccurred())
		return ticket
	}

	Describe("CreateTicket", func() {
		It("opens the ticket with default priority", func() {
			ticket := createTicket(owner)
			Expect(ticket.Status).To(Equal(domain.TicketStatusOpen))
			Expect(ticket.Priority).To(Equal(domain.TicketPriorityMedium))
			Expect(ticket.OwnerID).To(Equal(owner.ID))
			Expect(ticket.AssigneeID).To(BeNil())
		})

		It("queues a creation intent for the owner", func() {
			ticket := createTicket(owner)
			Expect(captured).To(HaveLen(1))
			Expect(captured[0].Type).To(Equal(events.EventTicketCreated))
			Expect(captured[0].Intents).To(ConsistOf(events.NotificationIntent{
				Kind: events.IntentTicketCreated, TicketID: ticket.ID, RecipientID: owner.ID,
			}))
		})

		It("rejects a short subject", func() {
			_, err := svc.CreateTicket(ctx, owner, service.TicketCreateInput{
				Subject:     "hey",
				Description: "long enough description",
			})
			Expect(errCode(err)).To(Equal("VALIDATION_FAILED"))
		})

		It("rejects an unknown priority", func() {
			_, err := svc.CreateTicket(ctx, owner, service.TicketCreateInput{
				Subject:     "Printer is broken",
				Description: "The office printer rejects every job.",
				Priority:    "catastrophic",
			})
			Expect(errCode(err)).To(Equal("VALIDATION_FAILED"))
		})
	})

	Describe("UpdateTicket", func() {
		It("lets the owner edit fields while the ticket is open", func() {
			ticket := createTicket(owner)
			subject := "Printer is still broken"
			updated, err := svc.UpdateTicket(ctx, owner, ticket.ID, service.TicketUpdateInput{Subject: &subject})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Subject).To(Equal(subject))
		})

		It("forbids a stranger", func() {
			ticket := createTicket(owner)
			subject := "hijacked subject"
			_, err := svc.UpdateTicket(ctx, other, ticket.ID, service.TicketUpdateInput{Subject: &subject})
			Expect(errCode(err)).To(Equal("FORBIDDEN"))
		})

		It("forbids the owner once the ticket left open", func() {
			ticket := createTicket(owner)
			_, err := svc.AssignTicket(ctx, admin, ticket.ID, agent.ID)
			Expect(err).NotTo(HaveOccurred())

			subject := "edited after assignment"
			_, err = svc.UpdateTicket(ctx, owner, ticket.ID, service.TicketUpdateInput{Subject: &subject})
			Expect(errCode(err)).To(Equal("FORBIDDEN"))
		})

		It("rejects a transition the table does not allow", func() {
			ticket := createTicket(owner)
			status := domain.TicketStatusResolved
			_, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &status})
			Expect(errCode(err)).To(Equal("INVALID_TRANSITION"))
		})

		It("walks the full lifecycle and records one history entry per hop", func() {
			ticket := createTicket(owner)
			for _, status := range []domain.TicketStatus{
				domain.TicketStatusInProgress,
				domain.TicketStatusResolved,
				domain.TicketStatusClosed,
			} {
				next := status
				_, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &next})
				Expect(err).NotTo(HaveOccurred())
			}

			entries, err := historyRepo.ListByTicket(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Status).To(Equal(domain.TicketStatusInProgress))
			Expect(entries[1].Status).To(Equal(domain.TicketStatusResolved))
			Expect(entries[2].Status).To(Equal(domain.TicketStatusClosed))
			for _, entry := range entries {
				Expect(entry.ChangedBy).To(Equal(admin.ID))
			}
		})

		It("treats closed as terminal", func() {
			ticket := createTicket(owner)
			status := domain.TicketStatusClosed
			_, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &status})
			Expect(err).NotTo(HaveOccurred())

			reopen := domain.TicketStatusOpen
			_, err = svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &reopen})
			Expect(errCode(err)).To(Equal("FORBIDDEN"))
		})

		It("emits a resolved intent on top of the status change", func() {
			ticket := createTicket(owner)
			inProgress := domain.TicketStatusInProgress
			_, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &inProgress})
			Expect(err).NotTo(HaveOccurred())

			captured = nil
			resolved := domain.TicketStatusResolved
			_, err = svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &resolved})
			Expect(err).NotTo(HaveOccurred())

			Expect(captured).To(HaveLen(1))
			Expect(captured[0].Intents).To(ConsistOf(
				events.NotificationIntent{Kind: events.IntentStatusChanged, TicketID: ticket.ID, RecipientID: owner.ID},
				events.NotificationIntent{Kind: events.IntentTicketResolved, TicketID: ticket.ID, RecipientID: owner.ID},
			))
		})

		It("surfaces a lost race as a conflict", func() {
			ticket := createTicket(owner)

			stale := &staleTicketRepo{memTicketRepo: ticketRepo, staleStatus: domain.TicketStatusInProgress}
			raceSvc := newService(service.TicketDependencies{
				TicketRepo:     stale,
				CommentRepo:    commentRepo,
				AttachmentRepo: attachRepo,
				HistoryRepo:    historyRepo,
				UserRepo:       userRepo,
				Dispatcher:     dispatcher,
			})

			resolved := domain.TicketStatusResolved
			_, err := raceSvc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &resolved})
			Expect(errCode(err)).To(Equal("CONCURRENT_UPDATE"))
		})

		It("applies an assignee change to a staff member", func() {
			ticket := createTicket(owner)
			updated, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{AssigneeID: &agent.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.AssigneeID).To(HaveValue(Equal(agent.ID)))
		})

		It("rejects an assignee change to a plain user", func() {
			ticket := createTicket(owner)
			_, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{AssigneeID: &other.ID})
			Expect(errCode(err)).To(Equal("INVALID_ASSIGNEE"))
		})

		It("rejects an assignee change to an unknown user", func() {
			ticket := createTicket(owner)
			unknown := "no-such-user"
			_, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{AssigneeID: &unknown})
			Expect(errCode(err)).To(Equal("INVALID_ASSIGNEE"))
		})
	})

	Describe("AssignTicket", func() {
		It("assigns an agent and auto-transitions open to in-progress", func() {
			ticket := createTicket(owner)
			captured = nil

			assigned, err := svc.AssignTicket(ctx, admin, ticket.ID, agent.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(assigned.Status).To(Equal(domain.TicketStatusInProgress))
			Expect(*assigned.AssigneeID).To(Equal(agent.ID))

			entries, err := historyRepo.ListByTicket(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].ChangedBy).To(Equal(admin.ID))

			Expect(captured).To(HaveLen(1))
			Expect(captured[0].Intents).To(ConsistOf(
				events.NotificationIntent{Kind: events.IntentTicketAssigned, TicketID: ticket.ID, RecipientID: owner.ID},
				events.NotificationIntent{Kind: events.IntentTicketAssigned, TicketID: ticket.ID, RecipientID: agent.ID},
			))
		})

		It("does not add a second history entry when already in progress", func() {
			ticket := createTicket(owner)
			_, err := svc.AssignTicket(ctx, admin, ticket.ID, agent.ID)
			Expect(err).NotTo(HaveOccurred())

			secondAgent := userRepo.add(&domain.User{Name: "Ben Backup", Email: "ben@example.com", Role: domain.RoleAgent, IsActive: true})
			_, err = svc.AssignTicket(ctx, admin, ticket.ID, secondAgent.ID)
			Expect(err).NotTo(HaveOccurred())

			entries, err := historyRepo.ListByTicket(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("rejects a plain user as assignee", func() {
			ticket := createTicket(owner)
			_, err := svc.AssignTicket(ctx, admin, ticket.ID, other.ID)
			Expect(errCode(err)).To(Equal("INVALID_ASSIGNEE"))
		})

		It("rejects an unknown assignee", func() {
			ticket := createTicket(owner)
			_, err := svc.AssignTicket(ctx, admin, ticket.ID, "missing-id")
			Expect(errCode(err)).To(Equal("INVALID_ASSIGNEE"))
		})
	})

	Describe("RateTicket", func() {
		resolveTicket := func(ticket *domain.Ticket) {
			for _, status := range []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusResolved} {
				next := status
				_, err := svc.UpdateTicket(ctx, admin, ticket.ID, service.TicketUpdateInput{Status: &next})
				Expect(err).NotTo(HaveOccurred())
			}
		}

		It("lets the owner rate a resolved ticket", func() {
			ticket := createTicket(owner)
			resolveTicket(ticket)

			rating, err := svc.RateTicket(ctx, owner, ticket.ID, 4, "quick fix")
			Expect(err).NotTo(HaveOccurred())
			Expect(rating.Score).To(Equal(4))

			stored, err := ticketRepo.GetByID(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Rating).NotTo(BeNil())
			Expect(stored.Rating.Score).To(Equal(4))
		})

		It("overwrites a previous rating", func() {
			ticket := createTicket(owner)
			resolveTicket(ticket)

			_, err := svc.RateTicket(ctx, owner, ticket.ID, 2, "slow")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.RateTicket(ctx, owner, ticket.ID, 5, "better after follow-up")
			Expect(err).NotTo(HaveOccurred())

			stored, err := ticketRepo.GetByID(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Rating.Score).To(Equal(5))
		})

		It("rejects rating by anyone but the owner", func() {
			ticket := createTicket(owner)
			resolveTicket(ticket)
			_, err := svc.RateTicket(ctx, admin, ticket.ID, 5, "")
			Expect(errCode(err)).To(Equal("NOT_OWNER"))
		})

		It("rejects rating an open ticket", func() {
			ticket := createTicket(owner)
			_, err := svc.RateTicket(ctx, owner, ticket.ID, 5, "")
			Expect(errCode(err)).To(Equal("RATING_NOT_ALLOWED"))
		})

		It("rejects an out-of-range score", func() {
			ticket := createTicket(owner)
			resolveTicket(ticket)
			_, err := svc.RateTicket(ctx, owner, ticket.ID, 6, "")
			Expect(errCode(err)).To(Equal("VALIDATION_FAILED"))
		})
	})

	Describe("DeleteTicket", func() {
		It("removes the ticket and everything keyed to it", func() {
			ticket := createTicket(owner)
			Expect(commentRepo.Create(ctx, &domain.Comment{TicketID: ticket.ID, AuthorID: owner.ID, Text: "any update?"})).To(Succeed())
			Expect(attachRepo.Create(ctx, &domain.Attachment{TicketID: ticket.ID, Filename: "x.png", UploadedBy: owner.ID})).To(Succeed())
			_, err := svc.AssignTicket(ctx, admin, ticket.ID, agent.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.DeleteTicket(ctx, ticket.ID)).To(Succeed())

			_, err = ticketRepo.GetByID(ctx, ticket.ID)
			Expect(err).To(HaveOccurred())
			comments, _ := commentRepo.ListByTicket(ctx, ticket.ID, true)
			Expect(comments).To(BeEmpty())
			attachments, _ := attachRepo.ListByTicket(ctx, ticket.ID)
			Expect(attachments).To(BeEmpty())
			entries, _ := historyRepo.ListByTicket(ctx, ticket.ID)
			Expect(entries).To(BeEmpty())
		})

		It("reports a missing ticket", func() {
			err := svc.DeleteTicket(ctx, "missing-id")
			Expect(errCode(err)).To(Equal("NOT_FOUND"))
		})
	})

	Describe("GetTicket", func() {
		It("forbids an unrelated user", func() {
			ticket := createTicket(owner)
			_, err := svc.GetTicket(ctx, other, ticket.ID)
			Expect(errCode(err)).To(Equal("FORBIDDEN"))
		})

		It("hides internal comments from the owner but not from staff", func() {
			ticket := createTicket(owner)
			Expect(commentRepo.Create(ctx, &domain.Comment{TicketID: ticket.ID, AuthorID: agent.ID, Text: "internal note", IsInternal: true})).To(Succeed())
			Expect(commentRepo.Create(ctx, &domain.Comment{TicketID: ticket.ID, AuthorID: agent.ID, Text: "public reply"})).To(Succeed())

			ownerView, err := svc.GetTicket(ctx, owner, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ownerView.Comments).To(HaveLen(1))
			Expect(ownerView.Comments[0].Comment.Text).To(Equal("public reply"))

			agentView, err := svc.GetTicket(ctx, agent, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(agentView.Comments).To(HaveLen(2))
		})

		It("populates owner and assignee summaries", func() {
			ticket := createTicket(owner)
			_, err := svc.AssignTicket(ctx, admin, ticket.ID, agent.ID)
			Expect(err).NotTo(HaveOccurred())

			view, err := svc.GetTicket(ctx, owner, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Owner.ID).To(Equal(owner.ID))
			Expect(view.Assignee.ID).To(Equal(agent.ID))
			Expect(view.History).To(HaveLen(1))
		})
	})

	Describe("ListTickets", func() {
		BeforeEach(func() {
			ownTicket := createTicket(owner)
			createTicket(other)
			assignedTicket := createTicket(other)
			_, err := svc.AssignTicket(ctx, admin, assignedTicket.ID, agent.ID)
			Expect(err).NotTo(HaveOccurred())
			_ = ownTicket
		})

		It("scopes a plain user to their own tickets", func() {
			tickets, total, err := svc.ListTickets(ctx, owner, service.TicketListInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(tickets).To(HaveLen(1))
			Expect(tickets[0].OwnerID).To(Equal(owner.ID))
		})

		It("scopes an agent to their assignments by default", func() {
			tickets, total, err := svc.ListTickets(ctx, agent, service.TicketListInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(*tickets[0].AssigneeID).To(Equal(agent.ID))
		})

		It("honors an explicit assignee filter for an agent", func() {
			assignee := agent.ID
			_, total, err := svc.ListTickets(ctx, agent, service.TicketListInput{AssigneeID: &assignee})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
		})

		It("lets an admin see everything with pagination", func() {
			tickets, total, err := svc.ListTickets(ctx, admin, service.TicketListInput{Page: 1, Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(3)))
			Expect(tickets).To(HaveLen(2))
		})

		It("filters by status", func() {
			status := domain.TicketStatusInProgress
			tickets, total, err := svc.ListTickets(ctx, admin, service.TicketListInput{Status: &status})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(tickets[0].Status).To(Equal(domain.TicketStatusInProgress))
		})
	})

	Describe("GetStatistics", func() {
		It("scopes counts for a plain user and not for an admin", func() {
			createTicket(owner)
			createTicket(other)

			ownerStats, err := svc.GetStatistics(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(ownerStats.Total).To(Equal(int64(1)))

			adminStats, err := svc.GetStatistics(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(adminStats.Total).To(Equal(int64(2)))
			Expect(adminStats.Open).To(Equal(int64(2)))
		})
	})

	Describe("AddAttachment", func() {
		It("stores metadata for an accessible ticket", func() {
			ticket := createTicket(owner)
			attachment, err := svc.AddAttachment(ctx, owner, ticket.ID, domain.Attachment{
				Filename:     "stored.png",
				OriginalName: "screenshot.png",
				MimeType:     "image/png",
				SizeBytes:    2048,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(attachment.ID).NotTo(BeEmpty())
			Expect(attachment.UploadedBy).To(Equal(owner.ID))

			stored, err := attachRepo.ListByTicket(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))
		})

		It("forbids an unrelated user", func() {
			ticket := createTicket(owner)
			_, err := svc.AddAttachment(ctx, other, ticket.ID, domain.Attachment{Filename: "x.png"})
			Expect(errCode(err)).To(Equal("FORBIDDEN"))
		})
	})
})
