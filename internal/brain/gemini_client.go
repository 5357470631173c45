package brain

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
)

const (
	SystemPrompt = `당신은 인스타그램 페르소나 계정을 운영하는 AI 매니저입니다.

### 🤖 역할
- 당신은 계정 주인(페르소나)의 말투와 세계관을 유지하며 팔로워 댓글에 답글을 작성합니다.
- 목적은 홍보가 아니라 팔로워와의 따뜻하고 자연스러운 소통입니다.

### 🚨 작성 지침
1. **한국어 우선**: 댓글이 영어라면 영어로, 그 외에는 한국어로 답합니다.
2. **짧고 자연스럽게**: 1~2문장, 이모지는 최대 1개.
3. **금지**: 해시태그 도배, 과도한 광고 문구, 개인정보 언급.
4. **맥락 활용**: 게시물 캡션이 주어지면 그 분위기에 맞춰 답합니다.`
)

type modelConfig struct {
	Name string
	RPM  int
	RPD  int
}

// GeminiDrafter is a DraftClient that talks to Gemini directly instead of
// delegating to the backend's AI service. Model fallback and local rate
// bookkeeping follow the free-tier limits.
type GeminiDrafter struct {
	Client *genai.Client
	Models []modelConfig

	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	mu           sync.Mutex
}

func NewGeminiDrafter(ctx context.Context, apiKey string) (*GeminiDrafter, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiDrafter{
		Client: client,
		Models: []modelConfig{
			{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
			{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
		},
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
	}, nil
}

// Ensure implementation
var _ ports.DraftClient = (*GeminiDrafter)(nil)

// DraftReply implements ports.DraftClient.
func (b *GeminiDrafter) DraftReply(ctx context.Context, personaNum int, text string, dc ports.DraftContext) (string, error) {
	prompt := fmt.Sprintf(`%s

작업: 아래 팔로워 댓글에 대한 답글을 작성하세요.
[게시물 캡션] %s
[팔로워 댓글] %s

조건:
1. 답글 내용만 순수 텍스트로 출력하세요. JSON이나 따옴표 금지.
2. 페르소나 계정 주인이 직접 쓴 것처럼 자연스럽게.
`, SystemPrompt, dc.PostCaption, text)

	reply, err := b.tryGenerateWithFallback(ctx, prompt)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", domain.ErrEmptyReply
	}
	return reply, nil
}

func (b *GeminiDrafter) tryGenerateWithFallback(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for _, cfg := range b.Models {
		if !b.canUseModel(cfg) {
			continue
		}

		result, err := b.Client.Models.GenerateContent(ctx, cfg.Name, genai.Text(prompt), nil)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "404") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return "", err
		}

		if result != nil && len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
			b.recordUsage(cfg)
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
	}

	// Every model exhausted: treat the drafting service as down.
	return "", fmt.Errorf("모든 모델 실패 (%v): %w", lastErr, domain.ErrAIUnavailable)
}

func (b *GeminiDrafter) canUseModel(cfg modelConfig) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.YearDay() != b.lastResetDay.YearDay() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if b.dailyCount[cfg.Name] >= cfg.RPD {
		return false
	}
	if b.minuteCount[cfg.Name] >= cfg.RPM {
		return false
	}
	return true
}

func (b *GeminiDrafter) recordUsage(cfg modelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[cfg.Name]++
	b.minuteCount[cfg.Name]++
}
