package research

import (
	"fmt"
	"strings"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// SystemPrompt instructs the model to answer with a single JSON object.
const SystemPrompt = `Você é um assistente especializado em verificar o status de licenciamento de softwares corporativos.

Sua tarefa é analisar os resultados de pesquisa na web fornecidos e determinar se um software específico requer licenciamento para uso corporativo/comercial.

INSTRUÇÕES:
1. Use as informações mais atualizadas e confiáveis sobre o software e sua versão
2. Verifique se o software requer licenciamento para uso corporativo/comercial
3. Identifique fontes oficiais (site do desenvolvedor, documentação oficial, termos de licença)
4. Analise se há versões gratuitas vs. pagas, licenças open-source vs. proprietárias
5. Considere o contexto de uso em uma instituição financeira (banco) com cerca de 8 mil funcionários

FORMATO DE RESPOSTA (JSON):
{
    "status_licenciamento": "Sim" ou "Não",
    "nivel_confianca": número de 0 a 100,
    "fontes": ["fonte1", "fonte2", ...],
    "links": ["https://link1.com", "https://link2.com", ...],
    "resumo": "Breve resumo da pesquisa e conclusão"
}

CRITÉRIOS:
- "Sim" se o software REQUER licenciamento para uso corporativo
- "Não" se o software é gratuito, open-source sem restrições, ou não requer licenciamento
- Nível de confiança baseado na qualidade e quantidade de fontes encontradas
- Priorize fontes oficiais e documentação do desenvolvedor
- Responda somente com o objeto JSON`

const querySuffix = "licenciamento corporativo comercial"

// BuildQuery returns the web search query for rec.
func BuildQuery(rec model.SoftwareRecord) string {
	if rec.Version != "" {
		return fmt.Sprintf("%s %s %s", rec.Name, rec.Version, querySuffix)
	}
	return fmt.Sprintf("%s %s", rec.Name, querySuffix)
}

// BuildUserPrompt embeds the record and the search snippets.
func BuildUserPrompt(rec model.SoftwareRecord, results []SearchResult) string {
	version := rec.Version
	if version == "" {
		version = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pesquise informações sobre o seguinte software:\n\nNome: %s\nVersão: %s\n\n", rec.Name, version)

	if len(results) == 0 {
		b.WriteString("Nenhum resultado de pesquisa foi encontrado.\n\n")
	} else {
		b.WriteString("Resultados da pesquisa na web:\n")
		for i, r := range results {
			fmt.Fprintf(&b, "\n[%d] %s\nURL: %s\n", i+1, r.Title, r.URL)
			if r.Snippet != "" {
				fmt.Fprintf(&b, "Trecho: %s\n", r.Snippet)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Determine se este software requer licenciamento para uso corporativo em uma instituição financeira.\n")
	b.WriteString("Retorne a resposta no formato JSON especificado.")
	return b.String()
}
