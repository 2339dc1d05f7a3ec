package viz

import (
	"bytes"
	"fmt"
	"html/template"
)

// compiledTemplate is parsed at init time to fail fast on template errors.
var compiledTemplate *template.Template

func init() {
	compiledTemplate = template.Must(template.New("viz").Parse(htmlTemplate))
}

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	Layout string // "force", "circle", "concentric", or "grid"
	Title  string // page title; defaults to the seed DOI
}

// DefaultOptions returns default HTML generation options.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{Layout: "force"}
}

// ValidLayouts lists the supported layout algorithm names.
var ValidLayouts = []string{"force", "circle", "concentric", "grid"}

// GenerateHTML generates a self-contained HTML file for the graph visualization.
func GenerateHTML(graph *GraphData, opts HTMLOptions) (string, error) {
	if graph == nil {
		return "", fmt.Errorf("graph cannot be nil")
	}

	if err := validateLayout(opts.Layout); err != nil {
		return "", err
	}

	title := opts.Title
	if title == "" {
		title = "Citation network: " + graph.Seed
	}

	if graph.IsEmpty() {
		return renderEmpty(title, graph.Seed)
	}

	graphJSON, err := graph.ToCytoscapeJSON()
	if err != nil {
		return "", err
	}

	data := templateData{
		Title:     title,
		GraphJSON: template.JS(graphJSON),
		Layout:    layoutToCytoscape(opts.Layout),
	}

	var buf bytes.Buffer
	if err := compiledTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering graph page: %w", err)
	}
	return buf.String(), nil
}

// validateLayout checks if the layout option is valid.
func validateLayout(layout string) error {
	switch layout {
	case "", "force", "circle", "concentric", "grid":
		return nil
	default:
		return fmt.Errorf("invalid layout %q: must be force, circle, concentric, or grid", layout)
	}
}

// templateData holds data for the HTML template.
type templateData struct {
	Title     string
	GraphJSON template.JS
	Layout    string
}

// layoutToCytoscape converts user-friendly layout names to Cytoscape.js layout algorithm names.
func layoutToCytoscape(layout string) string {
	switch layout {
	case "circle", "concentric", "grid":
		return layout
	default:
		return "cose"
	}
}

var emptyTemplate = template.Must(template.New("empty").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      justify-content: center;
      align-items: center;
      height: 100vh;
      margin: 0;
      background: #f5f5f5;
    }
    .empty-state {
      text-align: center;
      color: #666;
    }
    .empty-state h2 {
      margin-bottom: 0.5em;
      color: #333;
    }
    .empty-state code {
      background: #e0e0e0;
      padding: 2px 6px;
      border-radius: 3px;
    }
  </style>
</head>
<body>
  <div class="empty-state">
    <h2>No related papers</h2>
    <p><code>{{.Seed}}</code> has no citations or references in this store.</p>
  </div>
</body>
</html>`))

// renderEmpty returns HTML for a network with no candidates.
func renderEmpty(title, seed string) (string, error) {
	var buf bytes.Buffer
	err := emptyTemplate.Execute(&buf, struct{ Title, Seed string }{title, seed})
	if err != nil {
		return "", fmt.Errorf("rendering empty page: %w", err)
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <script src="https://unpkg.com/cytoscape@3/dist/cytoscape.min.js"></script>
  <style>
    * {
      box-sizing: border-box;
    }
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      padding: 0;
      background: #f5f5f5;
    }
    #cy {
      width: 100%;
      height: 100vh;
      background: white;
    }
    #legend {
      position: absolute;
      top: 12px;
      left: 12px;
      background: rgba(255,255,255,0.9);
      border: 1px solid #ddd;
      border-radius: 4px;
      padding: 6px 10px;
      font-size: 12px;
    }
    #legend span {
      display: inline-block;
      width: 18px;
      height: 3px;
      margin-right: 6px;
      vertical-align: middle;
    }
    #tooltip {
      position: absolute;
      display: none;
      background: white;
      border: 1px solid #ccc;
      border-radius: 4px;
      padding: 8px 12px;
      box-shadow: 0 2px 8px rgba(0,0,0,0.15);
      max-width: 320px;
      font-size: 13px;
      z-index: 1000;
      pointer-events: none;
    }
    #tooltip .type {
      font-size: 10px;
      text-transform: uppercase;
      color: #888;
      margin-bottom: 4px;
    }
    #tooltip .label {
      font-weight: bold;
      margin-bottom: 4px;
    }
    #tooltip .detail {
      color: #555;
      margin: 2px 0;
    }
  </style>
</head>
<body>
  <div id="cy"></div>
  <div id="legend">
    <div><span style="background:#95A5A6"></span>cites</div>
    <div><span style="background:#337AB7"></span>co-cited</div>
    <div><span style="background:#E8923A"></span>coupled</div>
  </div>
  <div id="tooltip"></div>
  <script>
    (function() {
      const graphData = {{.GraphJSON}};
      const layout = "{{.Layout}}";

      const cy = cytoscape({
        container: document.getElementById('cy'),
        elements: graphData,
        style: [
          // Size tracks similarity to the seed
          {
            selector: 'node',
            style: {
              'background-color': '#4A90D9',
              'label': 'data(label)',
              'color': '#333',
              'font-size': '10px',
              'text-valign': 'bottom',
              'text-margin-y': '5px',
              'width': 'mapData(score, 0, 100, 15, 60)',
              'height': 'mapData(score, 0, 100, 15, 60)'
            }
          },
          {
            selector: 'node[?seed]',
            style: {
              'background-color': '#C0392B',
              'font-weight': 'bold',
              'border-width': 3,
              'border-color': '#7B241C'
            }
          },
          {
            selector: 'edge[type="cites"]',
            style: {
              'line-color': '#95A5A6',
              'target-arrow-color': '#95A5A6',
              'target-arrow-shape': 'triangle',
              'curve-style': 'bezier',
              'width': 1.5
            }
          },
          {
            selector: 'edge[type="co-cited"]',
            style: {
              'line-color': '#337AB7',
              'line-style': 'dashed',
              'curve-style': 'bezier',
              'width': 'mapData(weight, 1, 20, 1, 6)'
            }
          },
          {
            selector: 'edge[type="coupled"]',
            style: {
              'line-color': '#E8923A',
              'line-style': 'dotted',
              'curve-style': 'bezier',
              'width': 'mapData(weight, 1, 20, 1, 6)'
            }
          },
          {
            selector: 'node.highlighted',
            style: {
              'border-width': 3,
              'border-color': '#ff6b6b'
            }
          },
          {
            selector: 'node.dimmed',
            style: {
              'opacity': 0.3
            }
          },
          {
            selector: 'edge.dimmed',
            style: {
              'opacity': 0.2
            }
          }
        ],
        layout: {
          name: layout,
          animate: false,
          nodeRepulsion: 8000,
          idealEdgeLength: 100,
          edgeElasticity: 100,
          concentric: function(node) { return node.data('score'); },
          levelWidth: function() { return 10; }
        }
      });

      const tooltip = document.getElementById('tooltip');

      function showTooltip(evt, content) {
        tooltip.innerHTML = content;
        tooltip.style.display = 'block';
        const pos = evt.renderedPosition || evt.position;
        tooltip.style.left = (pos.x + 15) + 'px';
        tooltip.style.top = (pos.y + 15) + 'px';
      }

      function hideTooltip() {
        tooltip.style.display = 'none';
      }

      function getNodeTooltip(node) {
        const data = node.data();
        let html = '<div class="type">' + (data.seed ? 'seed' : 'score ' + data.score.toFixed(1)) + '</div>';
        html += '<div class="label">' + escapeHtml(data.title || data.id) + '</div>';
        if (data.authors) html += '<div class="detail">' + escapeHtml(data.authors) + '</div>';
        if (data.journal) html += '<div class="detail">' + escapeHtml(data.journal) + '</div>';
        if (data.year) html += '<div class="detail">Year: ' + data.year + '</div>';
        html += '<div class="detail">doi:' + escapeHtml(data.id) + '</div>';
        return html;
      }

      function getEdgeTooltip(edge) {
        const data = edge.data();
        let html = '<div class="type">' + data.type + '</div>';
        html += '<div class="label">' + escapeHtml(data.source) + ' → ' + escapeHtml(data.target) + '</div>';
        if (data.type !== 'cites') html += '<div class="detail">Shared: ' + data.weight + '</div>';
        return html;
      }

      function escapeHtml(str) {
        if (!str) return '';
        return String(str).replace(/&/g, '&amp;')
                  .replace(/</g, '&lt;')
                  .replace(/>/g, '&gt;')
                  .replace(/"/g, '&quot;');
      }

      cy.on('mouseover', 'node', function(evt) {
        showTooltip(evt, getNodeTooltip(evt.target));
      });
      cy.on('mouseout', 'node', hideTooltip);
      cy.on('mouseover', 'edge', function(evt) {
        showTooltip(evt, getEdgeTooltip(evt.target));
      });
      cy.on('mouseout', 'edge', hideTooltip);

      cy.on('tap', 'node', function(evt) {
        const node = evt.target;
        cy.elements().removeClass('highlighted dimmed');
        const neighborhood = node.neighborhood().add(node);
        neighborhood.addClass('highlighted');
        cy.elements().not(neighborhood).addClass('dimmed');
      });

      // Double click opens the paper
      cy.on('dbltap', 'node', function(evt) {
        window.open('https://doi.org/' + evt.target.id(), '_blank');
      });

      cy.on('tap', function(evt) {
        if (evt.target === cy) {
          cy.elements().removeClass('highlighted dimmed');
        }
      });
    })();
  </script>
</body>
</html>`
