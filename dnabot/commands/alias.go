package commands

import (
	"context"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/duetnight/dnabot/dnabot"
	"github.com/duetnight/dnabot/dnabot/alias"
	"github.com/duetnight/dnabot/dnabot/config"
	"github.com/duetnight/dnabot/dnabot/utils"
)

var kindChoices = []discord.ApplicationCommandOptionChoiceString{
	{Name: "角色", Value: "char"},
	{Name: "武器", Value: "weapon"},
}

var Alias = discord.SlashCommandCreate{
	Name:        "alias",
	Description: "管理角色和武器别名",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "添加别名",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "kind",
					Description: "角色还是武器",
					Required:    true,
					Choices:     kindChoices,
				},
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "本名或已有别名",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "alias",
					Description: "新别名",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "delete",
			Description: "删除别名",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "kind",
					Description: "角色还是武器",
					Required:    true,
					Choices:     kindChoices,
				},
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "本名或已有别名",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "alias",
					Description: "要删除的别名",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "查看别名列表",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "kind",
					Description: "角色还是武器",
					Required:    true,
					Choices:     kindChoices,
				},
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "指定名称，留空列出全部",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "resolve",
			Description: "解析一个别名",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "kind",
					Description: "角色还是武器",
					Required:    true,
					Choices:     kindChoices,
				},
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "要解析的名称",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "refresh",
			Description: "从游戏数据恢复别名表",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "force",
					Description: "覆盖现有别名表",
					Required:    false,
				},
			},
		},
	},
}

func AliasHandler(b *dnabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		data := e.SlashCommandInteractionData()
		kind := data.String("kind")
		name := strings.TrimSpace(data.String("name"))
		newAlias := strings.TrimSpace(data.String("alias"))

		var (
			msg string
			err error
		)
		switch *data.SubCommandName {
		case "add":
			if kind == "weapon" {
				msg, err = b.Alias.ActionWeaponAlias(alias.ActionAdd, name, newAlias)
			} else {
				msg, err = b.Alias.ActionCharAlias(alias.ActionAdd, name, newAlias)
			}
		case "delete":
			if kind == "weapon" {
				msg, err = b.Alias.ActionWeaponAlias(alias.ActionDelete, name, newAlias)
			} else {
				msg, err = b.Alias.ActionCharAlias(alias.ActionDelete, name, newAlias)
			}
		case "list":
			switch {
			case kind == "weapon" && name == "":
				msg = b.Alias.AllWeaponList()
			case kind == "weapon":
				msg = b.Alias.WeaponAliasList(name)
			case name == "":
				msg = b.Alias.AllCharList()
			default:
				msg = b.Alias.CharAliasList(name)
			}
		case "resolve":
			if kind == "weapon" {
				msg = "武器【" + name + "】解析为: " + b.Alias.WeaponName(name)
			} else if resolved := b.Alias.CharName(name); resolved != "" {
				msg = "角色【" + name + "】解析为: " + resolved
			} else if suggestions := b.Alias.Suggest(name, 5); len(suggestions) > 0 {
				msg = "角色【" + name + "】不存在, 是否想找: " + strings.Join(suggestions, "、")
			} else {
				msg = "角色【" + name + "】不存在，请检查名称"
			}
		case "refresh":
			msg, err = b.Alias.Refresh(ctx, b.Resolver, data.Bool("force"))
		}
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, err.Error())
		}
		return utils.EH.CreateInfoEmbed(e, msg)
	}
}
