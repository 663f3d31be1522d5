package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/justifi/internal/application/service"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// RuleFile is the YAML document accepted by "rules import".
//
//	rules:
//	  - name: engineering-large
//	    department: Engineering
//	    spend_threshold: 10000
//	    approver_emails: [lead@corp.example, cfo@corp.example]
type RuleFile struct {
	Rules []service.RuleInput `yaml:"rules"`
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ParseRuleFile decodes a rule file, rejecting unknown keys.
func ParseRuleFile(r io.Reader) (*RuleFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f RuleFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	return &f, nil
}

// ImportRules upserts rules by name: an existing rule with the same name is
// updated, anything else is created.
func ImportRules(ctx context.Context, rules service.RuleService, in []service.RuleInput) (*ImportResult, error) {
	existing, err := rules.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]entity.RuleID, len(existing))
	for _, r := range existing {
		byName[r.Name] = r.ID
	}

	res := &ImportResult{}
	for i, r := range in {
		name := strings.TrimSpace(r.Name)
		if id, ok := byName[name]; ok {
			if _, err := rules.Update(ctx, id, r); err != nil {
				return res, fmt.Errorf("rules[%d] %q: %w", i, name, err)
			}
			res.Updated++
			continue
		}
		created, err := rules.Create(ctx, r)
		if err != nil {
			return res, fmt.Errorf("rules[%d] %q: %w", i, name, err)
		}
		byName[created.Name] = created.ID
		res.Created++
	}
	return res, nil
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage routing rules",
	}
	cmd.AddCommand(newRulesImportCommand(rootOpts))
	cmd.AddCommand(newRulesListCommand(rootOpts))
	return cmd
}

func newRulesImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update routing rules from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			file, err := ParseRuleFile(f)
			if err != nil {
				return err
			}

			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := ImportRules(cmd.Context(), e.services.Rules, file.Rules)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d rule(s)\n", res.Created, res.Updated)
			return nil
		},
	}
}

func newRulesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List routing rules sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			rules, err := e.services.Rules.List(cmd.Context())
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), rules)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tTYPE\tTHRESHOLD\tAPPROVERS")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Name, orAny(r.Department), orAny(r.TypeCode),
					threshold(r.SpendThreshold), strings.Join(r.ApproverEmails, ","))
			}
			return tw.Flush()
		},
	}
}

func orAny(s *string) string {
	if s == nil {
		return "*"
	}
	return *s
}

func threshold(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
