package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"resume-match-go/internal/chunker"
	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/llm"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/rag"
	"resume-match-go/internal/scoring"
	"resume-match-go/internal/service"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
	"resume-match-go/pkg/ratelimit"
)

func main() {
	var (
		configPath string
		mode       string
		resumeID   string
		jobID      string
		question   string
		scopeID    string
		topK       int
		history    []string
	)

	pflag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	pflag.StringVar(&mode, "mode", "", "运行模式: index | index-job | delete | score | rank | query")
	pflag.StringVar(&resumeID, "resume", "", "简历ID (index/delete/score)")
	pflag.StringVar(&jobID, "job", "", "岗位ID (index-job/score/rank)")
	pflag.StringVar(&question, "question", "", "自然语言问题 (query)")
	pflag.StringVar(&scopeID, "scope", "", "检索范围的岗位ID，留空表示全库 (query)")
	pflag.IntVar(&topK, "top-k", 0, "检索分块数，0取配置默认 (query)")
	pflag.StringArrayVar(&history, "turn", nil, "历史问答轮次，格式 '问题|回答'，可多次指定 (query)")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logger)

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化追踪失败，继续以无追踪模式运行")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn().Err(err).Msg("关闭追踪导出器失败")
				}
			}()
		}
	}

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()
	if store.MySQL == nil {
		logger.Fatal().Msg("MySQL未配置，无法提供简历与岗位数据")
	}

	// 嵌入与对话模型，均套上按QPM的限流代理
	baseEmbedder, err := embedding.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化Embedding客户端失败")
	}
	embedQPM := ratelimit.ResolveQPM(cfg.ModelQPMLimits, cfg.Aliyun.Embedding.Model, 0)
	embedder := embedding.NewRateLimitedEmbedder(baseEmbedder, embedQPM)

	baseChatModel, err := llm.NewQwenChatModel(cfg.Aliyun.APIKey, cfg.Aliyun.Model, cfg.Aliyun.APIURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化对话模型失败")
	}
	chatQPM := ratelimit.ResolveQPM(cfg.ModelQPMLimits, cfg.Aliyun.Model, 0)
	chatModel := ratelimit.NewRateLimitedLLMModel(baseChatModel, chatQPM)

	ck, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化分块器失败")
	}
	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化打分引擎失败")
	}

	var locker service.Locker
	if store.Redis != nil {
		locker = store.Redis
	}
	var publisher service.EventPublisher
	if store.RabbitMQ != nil {
		publisher = store.RabbitMQ
	}

	indexSvc := service.NewIndexService(store.MySQL, store.VectorIndex, embedder, ck, locker, publisher, cfg.Indexing)
	scoreSvc := service.NewScoreService(store.MySQL, store.MySQL, store.MySQL, engine, embedder, locker, publisher, cfg.Scoring)
	querySvc := service.NewQueryService(rag.NewPipeline(embedder, store.VectorIndex, chatModel, cfg.RAG))

	switch mode {
	case "index":
		if resumeID == "" {
			logger.Fatal().Msg("index模式需要 --resume")
		}
		count, err := indexSvc.IndexResume(ctx, resumeID)
		if err != nil {
			logger.Fatal().Err(err).Str("resume_id", resumeID).Msg("简历索引失败")
		}
		printJSON(map[string]interface{}{"resume_id": resumeID, "chunk_count": count})

	case "index-job":
		if jobID == "" {
			logger.Fatal().Msg("index-job模式需要 --job")
		}
		succeeded, failed, err := indexSvc.IndexJob(ctx, jobID)
		if err != nil {
			logger.Fatal().Err(err).Str("job_id", jobID).Msg("岗位批量摄取失败")
		}
		printJSON(map[string]interface{}{"job_id": jobID, "indexed": succeeded, "failed": failed})

	case "delete":
		if resumeID == "" {
			logger.Fatal().Msg("delete模式需要 --resume")
		}
		if err := indexSvc.DeleteResumeIndex(ctx, resumeID); err != nil {
			logger.Fatal().Err(err).Str("resume_id", resumeID).Msg("删除简历索引失败")
		}
		printJSON(map[string]interface{}{"resume_id": resumeID, "deleted": true})

	case "score":
		if resumeID == "" || jobID == "" {
			logger.Fatal().Msg("score模式需要 --resume 和 --job")
		}
		result, err := scoreSvc.ScoreResume(ctx, resumeID, jobID)
		if err != nil {
			logger.Fatal().Err(err).Msg("简历打分失败")
		}
		printJSON(result)

	case "rank":
		if jobID == "" {
			logger.Fatal().Msg("rank模式需要 --job")
		}
		results, err := scoreSvc.ScoreAndRankJob(ctx, jobID)
		if err != nil {
			logger.Fatal().Err(err).Msg("岗位批量打分失败")
		}
		printJSON(results)

	case "query":
		if question == "" {
			logger.Fatal().Msg("query模式需要 --question")
		}
		turns, err := parseHistory(history)
		if err != nil {
			logger.Fatal().Err(err).Msg("解析历史问答失败")
		}
		result, err := querySvc.Query(ctx, question, scopeID, topK, turns)
		if err != nil {
			logger.Fatal().Err(err).Msg("查询失败")
		}
		printJSON(result)

	default:
		pflag.Usage()
		os.Exit(2)
	}
}

// parseHistory 把 "问题|回答" 形式的参数解析为问答轮次
func parseHistory(raw []string) ([]types.ConversationTurn, error) {
	turns := make([]types.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		parts := strings.SplitN(item, "|", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("历史轮次格式应为 '问题|回答': %q", item)
		}
		turns = append(turns, types.ConversationTurn{Question: parts[0], Answer: parts[1]})
	}
	return turns, nil
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("序列化输出失败")
	}
	fmt.Println(string(data))
}
