package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/i18n"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/google/uuid"
)

// Estados de la respuesta del chat hacia el cliente.
const (
	ReplyCollecting = "collecting"
	ReplyProcessing = "processing"
	ReplyError      = "error"
)

// maxSaveRetries acota los reintentos del read-modify-write cuando otro
// escritor gana el CAS de la sesión.
const maxSaveRetries = 3

// ChatReply es la respuesta de un turno de conversación.
type ChatReply struct {
	SessionID string
	Message   string
	Status    string
	RequestID string
	Entities  map[string]string
}

// ConversationService implementa el state machine de la conversación: junta
// los cuatro campos turno a turno, pregunta por lo que falta y despacha el
// pedido exactamente una vez cuando el set queda completo.
type ConversationService struct {
	store       ports.ConversationStore
	extractor   ports.EntityExtractor
	dispatcher  *DispatcherService
	trans       *i18n.Translations
	callTimeout time.Duration
	newID       func() string
	now         func() time.Time
}

func NewConversationService(store ports.ConversationStore, extractor ports.EntityExtractor, dispatcher *DispatcherService, trans *i18n.Translations, callTimeout time.Duration) *ConversationService {
	return &ConversationService{
		store:       store,
		extractor:   extractor,
		dispatcher:  dispatcher,
		trans:       trans,
		callTimeout: callTimeout,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Handle procesa un mensaje del usuario y devuelve la respuesta del
// asistente. Un sessionID vacío arranca una sesión nueva.
func (s *ConversationService) Handle(ctx context.Context, sessionID, message string) (*ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, domainerrors.NewValidationError("message", "el mensaje no puede estar vacío")
	}
	if sessionID == "" {
		sessionID = s.newID()
	}
	ctx = logger.With(ctx, "session_id", sessionID)

	seed, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Una sesión ya despachada arranca de cero: el historial viejo no debe
	// contaminar la extracción del pedido nuevo.
	history := seed.Messages
	if seed.Status == models.ConversationDispatched {
		history = nil
	}

	extractCtx, cancelExtract := context.WithTimeout(ctx, s.callTimeout)
	extraction, extractErr := s.extractor.Extract(extractCtx, message, history)
	cancelExtract()
	if extractErr != nil {
		return s.replyExtractionTrouble(ctx, sessionID, message, extractErr)
	}

	var followUp string
	state, err := s.update(ctx, sessionID, func(st *models.ConversationState) {
		now := s.now()
		if st.Status == models.ConversationDispatched {
			st.Reset(now)
		}
		st.AppendMessage("user", message, now)
		st.Merge(extraction)
		st.UpdatedAt = now
		if st.IsComplete() {
			st.Status = models.ConversationReady
			// el id del pedido se reclama en la misma escritura que pasa la
			// sesión a ready: un reintento del despacho reutiliza este id en
			// vez de crear un segundo pedido
			if st.RequestID == "" {
				st.RequestID = s.dispatcher.NewRequestID()
			}
			followUp = ""
			return
		}
		followUp = s.followUp(st)
		st.AppendMessage("assistant", followUp, now)
	})
	if err != nil {
		return nil, err
	}

	if state.Status != models.ConversationReady {
		return &ChatReply{
			SessionID: sessionID,
			Message:   followUp,
			Status:    ReplyCollecting,
			Entities:  state.Entities,
		}, nil
	}
	return s.dispatchComplete(ctx, sessionID, state)
}

// dispatchComplete despacha el pedido de una conversación completa y deja la
// sesión en dispatched. Si el despacho falla la sesión queda en ready con el
// id ya reclamado y el próximo mensaje lo reintenta con ese mismo id.
func (s *ConversationService) dispatchComplete(ctx context.Context, sessionID string, state *models.ConversationState) (*ChatReply, error) {
	req, err := s.dispatcher.Dispatch(ctx, sessionID, state.RequestID, state.Entities)
	if err != nil {
		logger.Error(ctx, "falló el despacho del pedido", err)
		reply := s.trans.GetMessage("chat_dispatch_error", 0, nil)
		if _, saveErr := s.update(ctx, sessionID, func(st *models.ConversationState) {
			st.AppendMessage("assistant", reply, s.now())
			st.UpdatedAt = s.now()
		}); saveErr != nil {
			logger.Error(ctx, "no se pudo registrar la respuesta de error", saveErr)
		}
		return &ChatReply{
			SessionID: sessionID,
			Message:   reply,
			Status:    ReplyError,
			Entities:  state.Entities,
		}, nil
	}

	completion := s.trans.GetMessage("chat_completion", 0, map[string]interface{}{
		"Dataset":   state.Entities[models.FieldDatasetName],
		"RequestID": req.RequestID,
	})
	if _, err := s.update(ctx, sessionID, func(st *models.ConversationState) {
		now := s.now()
		st.Status = models.ConversationDispatched
		st.RequestID = req.RequestID
		st.AppendMessage("assistant", completion, now)
		st.UpdatedAt = now
	}); err != nil {
		// El pedido ya está publicado; lo peor que pasa es que el próximo
		// turno vuelva a ver la sesión en ready.
		logger.Error(ctx, "no se pudo marcar la conversación como despachada", err)
	}

	return &ChatReply{
		SessionID: sessionID,
		Message:   completion,
		Status:    ReplyProcessing,
		RequestID: req.RequestID,
		Entities:  state.Entities,
	}, nil
}

// replyExtractionTrouble registra el turno igual aunque la extracción haya
// fallado: el usuario ve una disculpa y puede reformular sin perder nada de
// lo ya juntado.
func (s *ConversationService) replyExtractionTrouble(ctx context.Context, sessionID, message string, extractErr error) (*ChatReply, error) {
	logger.Warn(ctx, "falló la extracción de entidades", "error", extractErr)
	reply := s.trans.GetMessage("chat_extraction_trouble", 0, nil)
	state, err := s.update(ctx, sessionID, func(st *models.ConversationState) {
		now := s.now()
		if st.Status == models.ConversationDispatched {
			st.Reset(now)
		}
		st.AppendMessage("user", message, now)
		st.AppendMessage("assistant", reply, now)
		st.UpdatedAt = now
	})
	if err != nil {
		return nil, err
	}
	return &ChatReply{
		SessionID: sessionID,
		Message:   reply,
		Status:    ReplyCollecting,
		Entities:  state.Entities,
	}, nil
}

// update aplica mutate sobre el estado fresco y lo persiste, releyendo y
// reintentando si otro escritor ganó el CAS.
func (s *ConversationService) update(ctx context.Context, sessionID string, mutate func(*models.ConversationState)) (*models.ConversationState, error) {
	var lastErr error
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		state, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		mutate(state)
		if err := s.store.Save(ctx, state); err != nil {
			if errors.Is(err, ports.ErrStaleConversation) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return state, nil
	}
	return nil, lastErr
}

// followUp arma la pregunta de seguimiento: resumen de lo juntado más el
// prompt del campo que falta (o la lista, si faltan varios).
func (s *ConversationService) followUp(state *models.ConversationState) string {
	var b strings.Builder

	collected := state.CollectedFields()
	if len(collected) == 0 {
		b.WriteString(s.trans.GetMessage("chat_welcome", 0, nil))
		b.WriteString("\n\n")
	} else {
		b.WriteString(s.trans.GetMessage("chat_collected_intro", 0, nil))
		b.WriteString("\n")
		for _, field := range collected {
			fmt.Fprintf(&b, "✓ %s: %s\n", s.trans.GetMessage("field_"+field, 0, nil), state.Entities[field])
		}
		b.WriteString("\n")
	}

	missing := state.MissingFields()
	if len(missing) == 1 {
		b.WriteString(s.trans.GetMessage("chat_need_one_more", 0, map[string]interface{}{
			"Prompt": s.trans.GetMessage("prompt_"+missing[0], 0, nil),
		}))
	} else {
		b.WriteString(s.trans.GetMessage("chat_need_following", 0, nil))
		b.WriteString("\n")
		for _, field := range missing {
			b.WriteString("• ")
			b.WriteString(s.trans.GetMessage("prompt_"+field, 0, nil))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
