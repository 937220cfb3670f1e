package remediation

import (
	"fmt"

	"kagent/internal/model"
)

// Suggestions lists manual steps for an issue without touching the cluster.
func Suggestions(issue model.Issue) []model.ManualAction {
	c := issue.Component
	switch issue.Type {
	case model.IssueHighCPU:
		return []model.ManualAction{
			{Action: "suggested_cordon_node", Description: "Stop new pods landing on " + c + " while load is high", Command: "kubectl cordon " + c},
			{Action: ActionScaleNodePool, Description: "Consider adding more nodes to the node pool"},
			{Action: ActionScaleDeployment, Description: "Consider horizontally scaling the busiest deployment"},
		}
	case model.IssueHighMemory:
		return []model.ManualAction{
			{Action: "suggested_reclaim_memory", Description: "Find the largest consumers on " + c, Command: "kubectl top pods -A --sort-by=memory"},
			{Action: ActionMemoryOptimization, Description: "Review memory limits and requests for pods on this node"},
		}
	case model.IssueFrequentRestarts:
		return []model.ManualAction{
			{Action: "suggest_pod_investigation", Description: "Investigate logs for error patterns and consider adjusting resources", Command: "kubectl logs --previous " + c},
			{Action: ActionRecreatePod, Description: "Delete the pod so its controller recreates it", Command: "kubectl delete pod " + c},
		}
	case model.IssueDiskPressure:
		return []model.ManualAction{
			{Action: "suggest_disk_cleanup", Description: "Remove unused images", Command: "crictl rmi --prune"},
			{Action: "suggest_disk_cleanup", Description: "Clear old logs", Command: `find /var/log -type f -name "*.log" -mtime +7 -delete`},
			{Action: "suggest_disk_cleanup", Description: "Check for large files", Command: "find / -xdev -type f -size +100M"},
		}
	case model.IssueMemoryPressure, model.IssuePIDPressure:
		return []model.ManualAction{
			{Action: "suggest_pod_eviction", Description: "Drain the heaviest pods off " + c, Command: "kubectl drain " + c + " --ignore-daemonsets --delete-emptydir-data"},
		}
	case model.IssueCPUTrend:
		return []model.ManualAction{
			{Action: ActionCreateHPA, Description: fmt.Sprintf("Add a HorizontalPodAutoscaler (min %d, max %d, %d%% cpu)", hpaMinReplicas, hpaMaxReplicas, hpaCPUTarget), Command: "kubectl autoscale deployment <name> --cpu-percent=70 --min=1 --max=10"},
		}
	case model.IssueMemoryTrend:
		return []model.ManualAction{
			{Action: ActionRaiseMemoryLimits, Description: "Raise memory limits of deployments on " + c + " by 20%"},
		}
	case model.IssueResourceCorrelation:
		return []model.ManualAction{
			{Action: ActionSetResourceLimits, Description: "Set explicit limits (cpu 1, memory 1Gi) and requests (cpu 500m, memory 512Mi) on deployments running on " + c},
		}
	case model.IssueMLAnomaly:
		return []model.ManualAction{
			{Action: "investigate_anomaly", Description: "Compare " + c + " against its usual usage profile", Command: "kubectl describe node " + c},
		}
	}
	return []model.ManualAction{}
}
