package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"credit-risk-backend/internal/app"
	"credit-risk-backend/internal/config"
	"credit-risk-backend/internal/dataset"
	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/service"
	"credit-risk-backend/internal/statement"
)

// cliOptions 命令行覆盖的配置项，空值表示沿用环境变量
type cliOptions struct {
	source      string
	datasetPath string
	samplesDB   string
	modelStore  string
	modelDir    string
	modelDB     string
	forestTrees int
	boostRounds int
	logLevel    string
}

func (o *cliOptions) config() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.TrainDataSource, strings.ToLower(o.source))
	override(&cfg.DatasetPath, o.datasetPath)
	override(&cfg.SamplesDBPath, o.samplesDB)
	override(&cfg.ModelStore, strings.ToLower(o.modelStore))
	override(&cfg.ModelDir, o.modelDir)
	override(&cfg.ModelDBPath, o.modelDB)
	override(&cfg.LogLevel, o.logLevel)
	if o.forestTrees > 0 {
		cfg.Training.ForestTrees = o.forestTrees
	}
	if o.boostRounds > 0 {
		cfg.Training.BoostRounds = o.boostRounds
	}
	return cfg, cfg.Validate()
}

func (o *cliOptions) logger(cfg *config.Config, cmd *cobra.Command) *logrus.Logger {
	return logger.NewWithOutput(cmd.ErrOrStderr(), cfg.LogLevel, "text")
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "riskctl",
		Short:         "企业信用风险评估命令行工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.samplesDB, "db", "", "样本库路径（默认 SAMPLES_DB_PATH）")
	pf.StringVar(&opts.modelStore, "store", "", "模型存储 file|sqlite|redis（默认 MODEL_STORE）")
	pf.StringVar(&opts.modelDir, "model-dir", "", "模型目录（默认 MODEL_DIR）")
	pf.StringVar(&opts.modelDB, "model-db", "", "模型库路径（默认 MODEL_DB_PATH）")
	pf.StringVar(&opts.logLevel, "log-level", "", "日志级别")

	root.AddCommand(
		newTrainCmd(opts),
		newEvaluateCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func newTrainCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "训练四个模型并保存到模型存储",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			log := opts.logger(cfg, cmd)
			ctx := cmd.Context()

			res := app.NewResources(cfg)
			defer res.Close()
			st, err := res.ModelStore(ctx)
			if err != nil {
				return err
			}
			loader, err := res.DatasetLoader()
			if err != nil {
				return err
			}

			svc := service.NewModelService(ensemble.New(app.ScorerOptions(cfg)), st, loader, log)
			resp, err := svc.Retrain(ctx, service.TriggerCLI)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.source, "source", "", "训练数据来源 csv|sqlite（默认 TRAIN_DATA_SOURCE）")
	f.StringVar(&opts.datasetPath, "dataset", "", "CSV 训练数据路径（默认 DATASET_PATH）")
	f.IntVar(&opts.forestTrees, "forest-trees", 0, "随机森林树数")
	f.IntVar(&opts.boostRounds, "boost-rounds", 0, "梯度提升轮数")
	return cmd
}

func newEvaluateCmd(opts *cliOptions) *cobra.Command {
	var company string
	cmd := &cobra.Command{
		Use:   "evaluate <report.xlsx>",
		Short: "用已保存的模型评估一份财务报表",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			log := opts.logger(cfg, cmd)
			ctx := cmd.Context()

			res := app.NewResources(cfg)
			defer res.Close()
			st, err := res.ModelStore(ctx)
			if err != nil {
				return err
			}
			b, err := st.Load(ctx)
			if err != nil {
				return fmt.Errorf("加载模型失败，请先执行 train: %w", err)
			}
			scorer := ensemble.New(app.ScorerOptions(cfg))
			if err := scorer.Restore(b); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			svc := service.NewEvaluationService(scorer, statement.DefaultAliases(), nil, 0, log)
			ev, err := svc.EvaluateWorkbook(f, company)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ev)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "公司名称")
	return cmd
}

func newImportCmd(opts *cliOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "import <dataset.csv>",
		Short: "把 CSV 训练数据导入样本库",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			ds, err := dataset.ReadCSV(f)
			if err != nil {
				return err
			}

			db, err := dataset.Open(cfg.SamplesDBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if source == "" {
				source = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			n, err := db.Insert(cmd.Context(), dataset.FromDataset(source, ds))
			if err != nil {
				return err
			}
			total, err := db.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已导入 %d 条样本到 %s（共 %d 条）\n", n, db.Path(), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "样本来源标识（默认取文件名）")
	return cmd
}

func newExportCmd(opts *cliOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "把样本库导出为 CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			db, err := dataset.Open(cfg.SamplesDBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			ds, err := db.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			if ds.Len() == 0 {
				return errors.New("样本库为空")
			}

			if output == "" || output == "-" {
				return dataset.WriteCSV(cmd.OutOrStdout(), ds)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := dataset.WriteCSV(f, ds); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "输出文件，- 表示标准输出")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
